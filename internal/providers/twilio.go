// Twilio voice adapter. The orchestration layer only needs a reachability
// probe and an opaque "place a call" operation; everything else about the
// telephony wire protocol stays behind this boundary.
package providers

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// Twilio wraps the Twilio REST API for outbound voice.
type Twilio struct {
	client     *resty.Client
	accountSID string
	from       string
}

// NewTwilio constructs the adapter. baseURL defaults to the public API.
func NewTwilio(baseURL, accountSID, authToken, from string) *Twilio {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(accountSID, authToken).
		SetTimeout(30 * time.Second)
	return &Twilio{client: c, accountSID: accountSID, from: from}
}

// Name identifies the provider for flags and circuits.
func (t *Twilio) Name() domain.Provider { return domain.ProviderTwilio }

type twilioCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// PlaceCall starts an outbound call to the E.164 number `to`, pointing the
// provider at callbackURL for call-control instructions. It returns the
// provider-assigned call identifier.
func (t *Twilio) PlaceCall(ctx context.Context, to, callbackURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Url", callbackURL)

	var out twilioCallResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetResult(&out).
		Post("/2010-04-01/Accounts/" + t.accountSID + "/Calls.json")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(domain.ProviderTwilio, resp.StatusCode(), resp.String())
	}
	return out.SID, nil
}

// HealthCheck fetches the account resource, the cheapest authenticated
// round trip the API offers.
func (t *Twilio) HealthCheck(ctx context.Context) error {
	resp, err := t.client.R().
		SetContext(ctx).
		Get("/2010-04-01/Accounts/" + t.accountSID + ".json")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return statusError(domain.ProviderTwilio, resp.StatusCode(), resp.String())
	}
	return nil
}
