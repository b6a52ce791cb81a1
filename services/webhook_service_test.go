package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/ws"
)

type fakeWebhookRepo struct {
	webhooks map[string]*models.Webhook
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{webhooks: map[string]*models.Webhook{}}
}

func (f *fakeWebhookRepo) Create(_ context.Context, w *models.Webhook) error {
	if w.ID == "" {
		w.ID = fmt.Sprintf("wh-%d", len(f.webhooks)+1)
	}
	f.webhooks[w.ID] = w
	return nil
}

func (f *fakeWebhookRepo) GetByID(_ context.Context, id string) (*models.Webhook, error) {
	w, ok := f.webhooks[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return w, nil
}

func (f *fakeWebhookRepo) ListByChannel(_ context.Context, channelID string) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, w := range f.webhooks {
		if w.ChannelID == channelID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.webhooks[id]; !ok {
		return pkg.ErrNotFound
	}
	delete(f.webhooks, id)
	return nil
}

type webhookFixture struct {
	*messageFixture
	webhooks *fakeWebhookRepo
	svc      WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	mf := newMessageFixture(t)
	f := &webhookFixture{messageFixture: mf, webhooks: newFakeWebhookRepo()}
	f.svc = NewWebhookService(f.webhooks, mf.channels, mf.perms, mf.svc)
	return f
}

func TestWebhookCreateTokenFormat(t *testing.T) {
	f := newWebhookFixture(t)

	webhook, err := f.svc.Create(context.Background(), "u-alice", &models.CreateWebhookRequest{
		ChannelID: "chan-1", Name: "ci-bot",
	})
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", webhook.Name)
	assert.Equal(t, "u-alice", webhook.CreatedBy)

	// Token 32 byte entropi, hex kodlu — 64 karakter.
	assert.Len(t, webhook.Token, 64)
	_, err = hex.DecodeString(webhook.Token)
	assert.NoError(t, err)
}

func TestWebhookCreateChannelGates(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	// DM kanalında webhook olmaz.
	_, err := f.svc.Create(ctx, "u-alice", &models.CreateWebhookRequest{ChannelID: "dm-1", Name: "bot"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	// Voice kanalında da olmaz — yalnızca text.
	_, err = f.svc.Create(ctx, "u-alice", &models.CreateWebhookRequest{ChannelID: "voice-1", Name: "bot"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	f.perms.denied["u-bob"] = true
	_, err = f.svc.Create(ctx, "u-bob", &models.CreateWebhookRequest{ChannelID: "chan-1", Name: "bot"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

// Yanlış token ile bilinmeyen id aynı cevabı verir — kimlik varlığı sızmaz.
func TestWebhookAuthenticate(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	webhook, err := f.svc.Create(ctx, "u-alice", &models.CreateWebhookRequest{ChannelID: "chan-1", Name: "bot"})
	require.NoError(t, err)

	got, err := f.svc.Authenticate(ctx, webhook.ID, webhook.Token)
	require.NoError(t, err)
	assert.Equal(t, webhook.ID, got.ID)

	_, err = f.svc.Authenticate(ctx, webhook.ID, "yanlis-token")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)

	_, err = f.svc.Authenticate(ctx, "wh-yok", webhook.Token)
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestWebhookExecuteDelivers(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	webhook, err := f.svc.Create(ctx, "u-alice", &models.CreateWebhookRequest{ChannelID: "chan-1", Name: "ci-bot"})
	require.NoError(t, err)

	msg, err := f.svc.Execute(ctx, webhook, &models.WebhookPayload{Content: "build yeşil", Username: "pipeline"})
	require.NoError(t, err)
	require.NotNil(t, msg.Author.WebhookID)
	assert.Equal(t, webhook.ID, *msg.Author.WebhookID)
	assert.Equal(t, "pipeline", msg.Author.DisplayName)

	events := f.hub.eventsFor(ws.OpMessageNew)
	require.Len(t, events, 1)
	assert.Equal(t, ws.KeyChannel("chan-1"), events[0].Room)

	// Boş payload mesaj üretmez.
	_, err = f.svc.Execute(ctx, webhook, &models.WebhookPayload{})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestWebhookListAndDelete(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	webhook, err := f.svc.Create(ctx, "u-alice", &models.CreateWebhookRequest{ChannelID: "chan-1", Name: "bot"})
	require.NoError(t, err)

	list, err := f.svc.ListByChannel(ctx, "u-alice", "chan-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	f.perms.denied["u-bob"] = true
	_, err = f.svc.ListByChannel(ctx, "u-bob", "chan-1")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, "u-bob", webhook.ID), pkg.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, "u-alice", webhook.ID))
	_, err = f.webhooks.GetByID(ctx, webhook.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
