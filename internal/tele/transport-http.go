package tele

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

const (
	contentTypeJSON = "application/json"
	maxResponseBody = 4 << 10
)

type transportHTTP struct {
	log     *log2.Log
	baseURL string
	client  *http.Client
}

// NewTransportHTTP posts JSON to baseURL+endpoint.
// rt=nil means new connection for every request.
func NewTransportHTTP(log *log2.Log, baseURL string, timeout time.Duration, rt http.RoundTripper) tele_api.Transporter {
	if rt == nil {
		rt = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
		}
	}
	return &transportHTTP{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: rt, Timeout: timeout},
	}
}

func (self *transportHTTP) Send(ctx context.Context, endpoint string, payload []byte) error {
	resp, err := self.post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	// drain a little so server is not reset mid-write, status is not inspected
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	_ = resp.Body.Close()
	return nil
}

func (self *transportHTTP) SendCheck(ctx context.Context, endpoint string, payload []byte) error {
	resp, err := self.post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		self.log.Errorf("POST %s status=%d", endpoint, resp.StatusCode)
		return errors.Errorf("POST %s status=%d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return errors.Annotatef(err, "POST %s read response", endpoint)
	}
	if len(body) > maxResponseBody {
		return errors.Errorf("POST %s response body too large", endpoint)
	}
	if len(body) == 0 {
		self.log.Debugf("POST %s success (no response body)", endpoint)
		return nil
	}
	ack, err := tele_api.ParseAck(body)
	if err != nil {
		self.log.Errorf("POST %s %v", endpoint, err)
		return errors.Annotatef(err, "POST %s", endpoint)
	}
	self.log.Debugf("POST %s response=%s", endpoint, ack.Response)
	return nil
}

func (self *transportHTTP) post(ctx context.Context, endpoint string, payload []byte) (*http.Response, error) {
	url := self.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Annotatef(err, "POST %s", url)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Close = true
	resp, err := self.client.Do(req)
	if err != nil {
		self.log.Errorf("POST %s failed: %v", url, err)
		return nil, errors.Annotatef(err, "POST %s", endpoint)
	}
	return resp, nil
}
