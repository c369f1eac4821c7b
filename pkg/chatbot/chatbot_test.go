package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/tracking"
)

type fakeCatalog struct {
	items []models.ServiceCatalogItem
	err   error
}

func (f fakeCatalog) ListActive(context.Context) ([]models.ServiceCatalogItem, error) {
	return f.items, f.err
}

type fakeTracker map[string]*tracking.Status

func (f fakeTracker) Lookup(_ context.Context, code string) (*tracking.Status, error) {
	if st, ok := f[code]; ok {
		return st, nil
	}
	return nil, errors.NotFoundf("tracking code %q", code)
}

var shop = config.Shop{Name: "Taller Ruiz", Phone: "555-0100", Hours: "Lunes a viernes 9 a 18", Address: "Av. Hidalgo 12"}

func newBot(opts ...Option) *Bot {
	catalog := fakeCatalog{items: []models.ServiceCatalogItem{
		{Name: "Afinación", Price: 1800},
		{Name: "Cambio de aceite", Price: 650},
	}}
	tracker := fakeTracker{
		"ABCD2345": {
			TrackingCode: "ABCD2345", Status: models.StatusInProgress, Stage: models.StageExecution,
			StageLabel: models.StageExecution.Label(), Progress: 62, Plate: "ABC123", Vehicle: "Nissan Versa",
			ReceivedAt: time.Now(),
		},
		"ZZZZ9999": {
			TrackingCode: "ZZZZ9999", Status: models.StatusFinished, Stage: models.StageClosure,
			StageLabel: models.StageClosure.Label(), Progress: 100, Plate: "XYZ987", Vehicle: "Honda CB190",
		},
	}
	log, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(log), WithBranches([]config.Branch{{Name: "Centro", Location: orb.Point{-99.13, 19.43}}})}, opts...)
	return New(shop, catalog, tracker, opts...)
}

func TestRuleIntents(t *testing.T) {
	bot := newBot()
	cases := []struct {
		name    string
		message string
		want    []string
	}{
		{"greeting", "Hola, buenas tardes", []string{"Taller Ruiz"}},
		{"hours", "¿A qué hora abren?", []string{shop.Hours}},
		{"location", "¿Dónde están ubicados?", []string{"Av. Hidalgo 12", "Centro"}},
		{"prices", "¿Cuánto cuesta la afinación?", []string{"Afinación: $1800.00", "Cambio de aceite: $650.00"}},
		{"quote", "Quiero una cotización", []string{"formulario", "555-0100"}},
		{"tracking without code", "¿Cómo va mi carro?", []string{"código de seguimiento"}},
		{"fallback", "asdf", []string{"No estoy seguro"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ans, err := bot.Reply(context.Background(), tc.message)
			require.NoError(t, err)
			assert.Equal(t, SourceRules, ans.Source)
			for _, w := range tc.want {
				assert.Contains(t, ans.Text, w)
			}
		})
	}
}

func TestTrackingCodes(t *testing.T) {
	bot := newBot()
	ctx := context.Background()

	ans, err := bot.Reply(ctx, "Mi código es ABCD2345")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Ejecución")
	assert.Contains(t, ans.Text, "62%")

	ans, err = bot.Reply(ctx, "codigo zzzz9999 por favor")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "concluido")

	ans, err = bot.Reply(ctx, "QWER7777")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "No encontramos")

	// an all-letter unknown code is still reported when the customer asks to track
	ans, err = bot.Reply(ctx, "mi código es QWERTYUP")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "No encontramos")
}

func TestCapitalizedWordsAreNotCodes(t *testing.T) {
	ans, err := newBot().Reply(context.Background(), "¿Cuánto cuesta cambiar la MANGUERA?")
	require.NoError(t, err)
	assert.NotContains(t, ans.Text, "No encontramos")
	assert.Contains(t, ans.Text, "Afinación: $1800.00")

	var asked bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		asked = true
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sí, cambiamos mangueras."}}]}`))
	}))
	defer srv.Close()
	llm, err := NewLLM(srv.URL, "", "m", srv.Client())
	require.NoError(t, err)

	ans, err = newBot(WithLLM(llm)).Reply(context.Background(), "REVISAN LA MANGUERA")
	require.NoError(t, err)
	assert.True(t, asked)
	assert.Equal(t, Answer{Text: "Sí, cambiamos mangueras.", Source: SourceLLM}, ans)
}

func TestReplyRejectsEmptyAndLongMessages(t *testing.T) {
	bot := newBot()
	_, err := bot.Reply(context.Background(), "   ")
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = bot.Reply(context.Background(), strings.Repeat("a", MaxMessageLength+1))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLLMReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" La afinación cuesta $1800. "}}]}`))
	}))
	defer srv.Close()

	llm, err := NewLLM(srv.URL+"/", "sk-test", "gpt-4o-mini", srv.Client())
	require.NoError(t, err)
	bot := newBot(WithLLM(llm))

	ans, err := bot.Reply(context.Background(), "¿Cuánto cuesta la afinación?")
	require.NoError(t, err)
	assert.Equal(t, Answer{Text: "La afinación cuesta $1800.", Source: SourceLLM}, ans)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Contains(t, got.Messages[0].Content, "Afinación: $1800.00")
	assert.Contains(t, got.Messages[0].Content, "Sucursal: Centro")
	assert.Equal(t, "¿Cuánto cuesta la afinación?", got.Messages[1].Content)

	// tracking codes never reach the model
	ans, err = bot.Reply(context.Background(), "ABCD2345")
	require.NoError(t, err)
	assert.Equal(t, SourceRules, ans.Source)
}

func TestLLMFailureFallsBackToRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	llm, err := NewLLM(srv.URL+"/v1/chat/completions", "", "m", srv.Client())
	require.NoError(t, err)
	_, err = llm.Complete(context.Background(), "s", "u")
	assert.ErrorContains(t, err, "quota exceeded")

	ans, err := newBot(WithLLM(llm)).Reply(context.Background(), "¿A qué hora cierran?")
	require.NoError(t, err)
	assert.Equal(t, SourceRules, ans.Source)
	assert.Contains(t, ans.Text, shop.Hours)
}

func TestNewLLMValidates(t *testing.T) {
	_, err := NewLLM("", "k", "m", nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewLLM("http://x", "k", "", nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}
