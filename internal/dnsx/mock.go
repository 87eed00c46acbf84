package dnsx

import (
	"context"

	"github.com/acornlabs/outreach/tools"
)

func NewMock(hosts []string, err error) Client {
	return &MockClient{hosts: hosts, err: err}
}

type MockClient struct {
	hosts []string
	err   error
}

func (c *MockClient) Stop(ctx context.Context) error {
	return nil
}

func (c *MockClient) MX(domain string) ([]string, error) {
	return c.hosts, c.err
}

func (c *MockClient) VerifyEmail(address string) error {
	_, err := tools.DomainOfEmail(address)
	if err != nil {
		return err
	}
	return c.err
}
