package dnsx

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/acornlabs/outreach/tools"
	"github.com/jellydator/ttlcache/v3"
	"github.com/miekg/dns"
	"github.com/modfin/henry/compare"
	"github.com/modfin/henry/slicez"
	"github.com/sirupsen/logrus"
)

// Client answers whether a recipient domain can receive mail at all. It is
// used as an import preflight, addresses whose domain publishes no MX record
// will bounce no matter how many retries the transport spends on them.
type Client interface {
	MX(domain string) ([]string, error)
	VerifyEmail(address string) error
	Stop(ctx context.Context) error
}

type client struct {
	mxCache      *ttlcache.Cache[string, []string]
	mu           *tools.KeyedMutex
	log          *logrus.Logger
	resolverHost string
	resolverPort string
}

func New(resolver string, log *logrus.Logger) Client {
	if log == nil {
		log = logrus.New()
		log.AddHook(tools.LoggerWho{Name: "dnsx"})
	}
	c := &client{
		mxCache: ttlcache.New[string, []string](ttlcache.WithDisableTouchOnHit[string, []string]()),
		mu:      tools.NewKeyedMutex(),
		log:     log,
	}

	var err error
	c.resolverHost, c.resolverPort, err = net.SplitHostPort(resolver)
	if err != nil {
		c.log.WithError(err).Errorf("could not split host and port of resolver %s, defaulting to 1.1.1.1", resolver)
		c.resolverHost = compare.Coalesce(c.resolverHost, "1.1.1.1")
		c.resolverPort = compare.Coalesce(c.resolverPort, "53")
	}

	go c.mxCache.Start()
	return c
}

func (c *client) Stop(ctx context.Context) error {
	c.mxCache.Stop()
	return nil
}

func (c *client) VerifyEmail(address string) error {
	domain, err := tools.DomainOfEmail(address)
	if err != nil {
		return err
	}
	_, err = c.MX(domain)
	return err
}

// MX returns the domain's exchange hosts ordered by preference. Answers are
// cached for the record's TTL and lookups for the same domain are collapsed
// behind a per-domain lock.
func (c *client) MX(domain string) ([]string, error) {

	unlock := c.mu.Lock(domain)
	defer unlock()

	item := c.mxCache.Get(domain)
	if item != nil {
		return item.Value(), nil
	}

	cli := dns.Client{}
	m := &dns.Msg{}
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	r, _, err := cli.Exchange(m, net.JoinHostPort(c.resolverHost, c.resolverPort))
	if err != nil {
		err = fmt.Errorf("could not query resolver for domain %s, err: %w", domain, err)
		c.log.WithError(err).WithField("domain", domain).Info("mx lookup failed")
		return nil, err
	}

	if r.Rcode != dns.RcodeSuccess {
		err = fmt.Errorf("mx query for %s answered with rcode %d", domain, r.Rcode)
		c.log.WithError(err).WithField("domain", domain).Info("invalid answer for domain")
		return nil, err
	}

	mxa := slicez.Map(r.Answer, func(a dns.RR) *dns.MX {
		mx, _ := a.(*dns.MX)
		return mx
	})
	mxa = slicez.Reject(mxa, compare.IsZero[*dns.MX]())
	mxa = slicez.SortBy(mxa, func(i, j *dns.MX) bool {
		return i.Preference < j.Preference
	})
	hosts := slicez.Map(mxa, func(mx *dns.MX) string {
		return strings.TrimRight(mx.Mx, ".")
	})

	if len(hosts) == 0 {
		err = fmt.Errorf("no mx records for domain %s", domain)
		c.log.WithField("domain", domain).Info("no mx records found")
		return nil, err
	}

	ttl := slicez.Min(slicez.Map(mxa, func(mx *dns.MX) uint32 {
		return mx.Hdr.Ttl
	})...)
	c.mxCache.Set(domain, hosts, time.Duration(ttl)*time.Second)

	return hosts, nil
}
