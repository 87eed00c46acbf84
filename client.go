package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func NewClient(host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host: host,
	}
}

// Client talks to a running outreachd over its HTTP API.
type Client struct {
	host string
}

func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResponse, error) {

	body, err := json.Marshal(req)
	if err != nil {
		return UploadResponse{}, err
	}

	r, err := http.NewRequest("POST", c.host+"/api/recipients", bytes.NewBuffer(body))
	if err != nil {
		return UploadResponse{}, err
	}
	r = r.WithContext(ctx)
	r.Header.Add("content-type", "application/json")
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		return UploadResponse{}, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return UploadResponse{}, fmt.Errorf("upload returned status %d, %s", resp.StatusCode, string(respBytes))
	}
	var u UploadResponse
	err = json.Unmarshal(respBytes, &u)
	return u, err
}

func (c *Client) Stats(ctx context.Context) (AggregateStats, error) {
	r, err := http.NewRequest("GET", c.host+"/api/tracking/stats", nil)
	if err != nil {
		return AggregateStats{}, err
	}
	r = r.WithContext(ctx)
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		return AggregateStats{}, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return AggregateStats{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return AggregateStats{}, fmt.Errorf("stats returned status %d, %s", resp.StatusCode, string(respBytes))
	}
	var s AggregateStats
	err = json.Unmarshal(respBytes, &s)
	return s, err
}

func (c *Client) Tracking(ctx context.Context, deliveryId string) (TrackingStats, error) {
	r, err := http.NewRequest("GET", c.host+"/api/tracking/"+deliveryId, nil)
	if err != nil {
		return TrackingStats{}, err
	}
	r = r.WithContext(ctx)
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		return TrackingStats{}, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return TrackingStats{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return TrackingStats{}, fmt.Errorf("tracking returned status %d, %s", resp.StatusCode, string(respBytes))
	}
	var t TrackingStats
	err = json.Unmarshal(respBytes, &t)
	return t, err
}
