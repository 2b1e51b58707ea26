package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

func strp(s string) *string { return &s }

func testAlert() *models.AlertEvent {
	return &models.AlertEvent{
		ID:          7,
		SiteID:      1,
		DeviceID:    2,
		Type:        models.AlertOffline,
		Message:     "Device Main Inverter offline for ~25 min (threshold 10m)",
		TriggeredAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func testDevice() *models.Device {
	lastSeen := time.Date(2026, 8, 30, 11, 35, 0, 0, time.UTC)
	return &models.Device{ID: 2, SiteID: 1, Name: "Main Inverter", LastSeen: &lastSeen}
}

func TestWebhookDelivered(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	site := &models.Site{ID: 1, Name: "Farm", NotifyWebhookEnabled: true, NotifyWebhookURL: strp(srv.URL)}
	ch := NewWebhookChannel(zap.NewNop())

	result := ch.Send(context.Background(), testAlert(), site, testDevice())

	assert.True(t, result.Success)
	assert.Equal(t, "OK", result.Code)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)
	assert.Equal(t, "OFFLINE", got["type"])
	assert.Equal(t, "Farm", got["siteName"])
	assert.Equal(t, "Main Inverter", got["deviceName"])
}

func TestWebhookHTTPErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	site := &models.Site{ID: 1, NotifyWebhookEnabled: true, NotifyWebhookURL: strp(srv.URL)}
	ch := NewWebhookChannel(zap.NewNop())

	result := ch.Send(context.Background(), testAlert(), site, testDevice())

	assert.False(t, result.Success)
	assert.Equal(t, "HTTP_502", result.Code)
	assert.Contains(t, result.Response, "upstream broken")
}

func TestWebhookSkipCodes(t *testing.T) {
	ch := NewWebhookChannel(zap.NewNop())

	disabled := ch.Send(context.Background(), testAlert(), &models.Site{ID: 1}, testDevice())
	assert.Equal(t, "DISABLED", disabled.Code)

	noURL := ch.Send(context.Background(), testAlert(), &models.Site{ID: 1, NotifyWebhookEnabled: true}, testDevice())
	assert.Equal(t, "NO_URL", noURL.Code)
}

func TestEmailSent(t *testing.T) {
	var gotTo []string
	var gotMsg string
	ch := NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"}, zap.NewNop())
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	site := &models.Site{ID: 1, Name: "Farm", NotifyEmailEnabled: true, NotifyEmailTo: strp("owner@example.com, ops@example.com")}
	result := ch.Send(context.Background(), testAlert(), site, testDevice())

	assert.True(t, result.Success)
	assert.Equal(t, "OK", result.Code)
	assert.Equal(t, []string{"owner@example.com", "ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [Farm] OFFLINE alert")
	assert.Contains(t, gotMsg, "offline for ~25 min")
}

func TestEmailSkipAndErrorCodes(t *testing.T) {
	ch := NewEmailChannel(config.SMTPConfig{}, zap.NewNop())

	noSite := ch.Send(context.Background(), testAlert(), nil, testDevice())
	assert.Equal(t, "NO_SITE", noSite.Code)

	disabled := ch.Send(context.Background(), testAlert(), &models.Site{ID: 1, NotifyEmailEnabled: true}, testDevice())
	assert.Equal(t, "DISABLED_OR_EMPTY", disabled.Code)

	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}
	site := &models.Site{ID: 1, NotifyEmailEnabled: true, NotifyEmailTo: strp("owner@example.com")}
	failed := ch.Send(context.Background(), testAlert(), site, testDevice())
	assert.Equal(t, "ERROR", failed.Code)
	assert.Contains(t, failed.Message, "connection refused")
}

func whatsAppConfig(apiBase string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		Enabled:          true,
		APIBase:          apiBase,
		Token:            "test-token",
		PhoneNumberID:    "12345",
		DefaultRecipient: "+91 98765 43210",
		DefaultTemplate:  "hello_world",
	}
}

func TestWhatsAppTemplateOK(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(whatsAppConfig(srv.URL), zap.NewNop())
	site := &models.Site{ID: 1, Name: "Farm", NotifyWhatsappEnabled: true}

	result := ch.Send(context.Background(), testAlert(), site, testDevice())

	assert.True(t, result.Success)
	assert.Equal(t, "TEMPLATE_OK", result.Code)
	assert.Equal(t, "919876543210", got["to"]) // 号码归一化为纯数字
	tpl := got["template"].(map[string]interface{})
	assert.Equal(t, "hello_world", tpl["name"])
	assert.Nil(t, tpl["components"]) // hello_world 不带变量
}

func TestWhatsAppOfflineTemplateCarriesParams(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(whatsAppConfig(srv.URL), zap.NewNop())
	site := &models.Site{ID: 1, Name: "Farm", NotifyWhatsappEnabled: true, NotifyWhatsappTpl: strp("solar_offline")}

	result := ch.Send(context.Background(), testAlert(), site, testDevice())
	require.True(t, result.Success)

	tpl := got["template"].(map[string]interface{})
	components := tpl["components"].([]interface{})
	require.Len(t, components, 1)
	params := components[0].(map[string]interface{})["parameters"].([]interface{})
	require.Len(t, params, 4)
	assert.Equal(t, "Farm", params[0].(map[string]interface{})["text"])
	assert.Equal(t, "Main Inverter", params[1].(map[string]interface{})["text"])
	assert.Equal(t, "25", params[3].(map[string]interface{})["text"]) // 12:00 - 11:35
}

func TestWhatsAppSessionFallback(t *testing.T) {
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		bodies = append(bodies, body)
		if body["type"] == "template" {
			http.Error(w, `{"error":"template not approved"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(whatsAppConfig(srv.URL), zap.NewNop())
	site := &models.Site{ID: 1, Name: "Farm", NotifyWhatsappEnabled: true}

	result := ch.Send(context.Background(), testAlert(), site, testDevice())

	assert.True(t, result.Success)
	assert.Equal(t, "SESSION_OK", result.Code)
	require.Len(t, bodies, 2)
	assert.Equal(t, "template", bodies[0]["type"])
	assert.Equal(t, "text", bodies[1]["type"])
}

func TestWhatsAppSkipCodes(t *testing.T) {
	disabledCh := NewWhatsAppChannel(config.WhatsAppConfig{Enabled: false}, zap.NewNop())
	disabled := disabledCh.Send(context.Background(), testAlert(), &models.Site{ID: 1, NotifyWhatsappEnabled: true}, testDevice())
	assert.Equal(t, "DISABLED", disabled.Code)

	cfg := whatsAppConfig("http://unused.example")
	cfg.DefaultRecipient = ""
	noRecipient := NewWhatsAppChannel(cfg, zap.NewNop()).
		Send(context.Background(), testAlert(), &models.Site{ID: 1, NotifyWhatsappEnabled: true}, testDevice())
	assert.Equal(t, "NO_RECIPIENT", noRecipient.Code)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "********3210", maskPhone("919876543210"))
	assert.Equal(t, "321", maskPhone("321"))
}

type fakeDeliveryStore struct {
	inserted []*models.AlertDelivery
	err      error
}

func (f *fakeDeliveryStore) Insert(ctx context.Context, d *models.AlertDelivery) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.inserted = append(f.inserted, d)
	return int64(len(f.inserted)), nil
}

type staticChannel struct {
	name   models.Channel
	result Result
}

func (s *staticChannel) Name() models.Channel { return s.name }
func (s *staticChannel) Send(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) Result {
	return s.result
}

func TestDispatcherRecordsEveryAttempt(t *testing.T) {
	store := &fakeDeliveryStore{}
	d := NewDispatcher([]Channel{
		&staticChannel{name: models.ChannelEmail, result: Result{Success: true, Code: "OK"}},
		&staticChannel{name: models.ChannelWebhook, result: Result{Code: "NO_URL", Message: "webhook enabled but no URL configured"}},
		&staticChannel{name: models.ChannelWhatsApp, result: Result{Code: "DISABLED"}},
	}, store, zap.NewNop())

	d.Dispatch(context.Background(), testAlert(), &models.Site{ID: 1}, testDevice())

	require.Len(t, store.inserted, 3)
	assert.True(t, store.inserted[0].Success)
	require.NotNil(t, store.inserted[0].AlertID)
	assert.Equal(t, int64(7), *store.inserted[0].AlertID)
	assert.Equal(t, "NO_URL", store.inserted[1].Code)
	assert.Equal(t, "DISABLED", store.inserted[2].Code)
}

func TestDispatcherSwallowsStoreErrors(t *testing.T) {
	store := &fakeDeliveryStore{err: errors.New("db down")}
	d := NewDispatcher([]Channel{
		&staticChannel{name: models.ChannelEmail, result: Result{Success: true, Code: "OK"}},
	}, store, zap.NewNop())

	// 不应 panic 也不应传播错误
	d.Dispatch(context.Background(), testAlert(), &models.Site{ID: 1}, testDevice())
}

func TestDispatcherTruncatesLongResponse(t *testing.T) {
	long := make([]byte, models.MaxDeliveryResponseLen+500)
	for i := range long {
		long[i] = 'x'
	}
	store := &fakeDeliveryStore{}
	d := NewDispatcher([]Channel{
		&staticChannel{name: models.ChannelWebhook, result: Result{Code: "HTTP_500", Response: string(long)}},
	}, store, zap.NewNop())

	d.Dispatch(context.Background(), testAlert(), &models.Site{ID: 1}, testDevice())

	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0].Response, models.MaxDeliveryResponseLen)
}
