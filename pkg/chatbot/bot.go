// Package chatbot answers customer questions on the public site. Replies come
// from keyword rules over live shop data, optionally rephrased by an
// OpenAI-compatible model.
package chatbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/tracking"
	"tallerpro.mx/shop/utils"
)

const (
	SourceRules = "rules"
	SourceLLM   = "llm"

	MaxMessageLength = 1000
)

// Catalog lists what the shop currently offers.
type Catalog interface {
	ListActive(ctx context.Context) ([]models.ServiceCatalogItem, error)
}

// Tracker resolves customer tracking codes.
type Tracker interface {
	Lookup(ctx context.Context, code string) (*tracking.Status, error)
}

type Answer struct {
	Text   string `json:"reply"`
	Source string `json:"source"`
}

type Bot struct {
	shop     config.Shop
	branches []config.Branch
	catalog  Catalog
	tracker  Tracker
	llm      *LLM
	log      logrus.FieldLogger
}

type Option func(*Bot)

// WithLLM routes general questions through the model. Tracking questions
// are always answered from the database.
func WithLLM(llm *LLM) Option { return func(b *Bot) { b.llm = llm } }

func WithBranches(branches []config.Branch) Option {
	return func(b *Bot) { b.branches = branches }
}

func WithLogger(log logrus.FieldLogger) Option { return func(b *Bot) { b.log = log } }

func New(shop config.Shop, catalog Catalog, tracker Tracker, opts ...Option) *Bot {
	b := &Bot{shop: shop, catalog: catalog, tracker: tracker, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

const digits = "23456789"

var (
	exactCode = regexp.MustCompile(`\b[A-HJ-NP-Z2-9]{8}\b`)
	looseCode = regexp.MustCompile(`(?i)\b[a-hj-np-z2-9]{8}\b`)
)

type intent int

const (
	intentFallback intent = iota
	intentGreeting
	intentHours
	intentLocation
	intentServices
	intentQuote
	intentTracking
)

// keywords are matched against the folded message, first match wins.
var keywords = []struct {
	intent intent
	words  []string
}{
	{intentTracking, []string{"seguimiento", "rastre", "codigo", "como va mi", "estado de mi", "ya esta listo", "ya quedo"}},
	{intentQuote, []string{"cotiza", "presupuesto", "cotizacion"}},
	{intentServices, []string{"precio", "costo", "cuanto", "cuesta", "servicio", "ofrecen", "hacen"}},
	{intentHours, []string{"horario", "hora", "abren", "cierran", "abierto"}},
	{intentLocation, []string{"donde", "ubicacion", "direccion", "sucursal", "llegar"}},
	{intentGreeting, []string{"hola", "buenos dias", "buenas tardes", "buenas noches", "buen dia", "que tal"}},
}

func classify(folded string) intent {
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(folded, w) {
				return k.intent
			}
		}
	}
	return intentFallback
}

// Reply answers one customer message.
func (b *Bot) Reply(ctx context.Context, message string) (Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, apperr.Invalid("message", "is required")
	}
	if len([]rune(message)) > MaxMessageLength {
		return Answer{}, apperr.Invalid("message", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
	}

	folded := utils.Fold(message)
	in := classify(folded)

	code := exactCode.FindString(message)
	if code == "" && in == intentTracking {
		code = strings.ToUpper(looseCode.FindString(message))
	}
	if code != "" {
		text, ok, err := b.trackingReply(ctx, code, in == intentTracking || strings.ContainsAny(code, digits))
		if err != nil {
			return Answer{}, err
		}
		if ok {
			return Answer{Text: text, Source: SourceRules}, nil
		}
	}

	if b.llm != nil {
		text, err := b.llmReply(ctx, message)
		if err == nil {
			return Answer{Text: text, Source: SourceLLM}, nil
		}
		b.log.WithError(err).Warn("chatbot model unavailable, using rules")
	}

	text, err := b.ruleReply(ctx, in)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Source: SourceRules}, nil
}

// trackingReply answers for code. An unknown code is only reported when
// expectCode is set; otherwise ok is false and the message is handled as
// ordinary text, since an all-caps word like MANGUERA fits the code pattern.
func (b *Bot) trackingReply(ctx context.Context, code string, expectCode bool) (text string, ok bool, err error) {
	st, err := b.tracker.Lookup(ctx, code)
	if errors.Is(err, errors.NotFound) {
		if !expectCode {
			return "", false, nil
		}
		return fmt.Sprintf("No encontramos un servicio con el código %s. Revisa que esté bien escrito; lo encuentras en tu comprobante de recepción.", code), true, nil
	}
	if err != nil {
		return "", false, errors.Annotate(err, "chatbot tracking lookup")
	}
	if st.Status == models.StatusFinished {
		return fmt.Sprintf("El servicio %s de tu %s (%s) ya está concluido. ¡Puedes pasar por él!", st.TrackingCode, st.Vehicle, st.Plate), true, nil
	}
	return fmt.Sprintf("Tu %s (%s) está en la etapa \"%s\", con un avance de %d%%.", st.Vehicle, st.Plate, st.StageLabel, st.Progress), true, nil
}

func (b *Bot) ruleReply(ctx context.Context, in intent) (string, error) {
	name := b.shop.Name
	switch in {
	case intentGreeting:
		return fmt.Sprintf("¡Hola! Soy el asistente de %s. Puedo darte nuestros horarios, ubicación, precios de servicios o el estado de tu vehículo si me compartes tu código de seguimiento.", name), nil
	case intentHours:
		return fmt.Sprintf("Nuestro horario es: %s.", b.shop.Hours), nil
	case intentLocation:
		return b.locationText(), nil
	case intentServices:
		items, err := b.catalog.ListActive(ctx)
		if err != nil {
			return "", errors.Annotate(err, "chatbot catalog")
		}
		if len(items) == 0 {
			return "Por ahora no tenemos servicios publicados. Llámanos y con gusto te atendemos." + b.phoneSuffix(), nil
		}
		return "Estos son nuestros servicios:\n" + priceList(items), nil
	case intentQuote:
		return "Para cotizar llena el formulario de cotización con tus datos, tu vehículo y el servicio que necesitas. Te contactaremos a la brevedad." + b.phoneSuffix(), nil
	case intentTracking:
		return "Compárteme tu código de seguimiento de 8 caracteres (viene en tu comprobante de recepción) y te digo en qué etapa va tu vehículo.", nil
	}
	return "No estoy seguro de haberte entendido. Puedo ayudarte con horarios, ubicación, servicios y precios, cotizaciones o el estado de tu vehículo." + b.phoneSuffix(), nil
}

func (b *Bot) locationText() string {
	var parts []string
	if b.shop.Address != "" {
		parts = append(parts, "Estamos en "+b.shop.Address+".")
	}
	if len(b.branches) > 0 {
		names := make([]string, len(b.branches))
		for i, br := range b.branches {
			names[i] = br.Name
		}
		parts = append(parts, "Sucursales: "+strings.Join(names, ", ")+". Consulta el mapa en nuestra página.")
	}
	if len(parts) == 0 {
		return "Escríbenos o llámanos y te compartimos la ubicación." + b.phoneSuffix()
	}
	return strings.Join(parts, " ")
}

func (b *Bot) phoneSuffix() string {
	if b.shop.Phone == "" {
		return ""
	}
	return " Teléfono: " + b.shop.Phone + "."
}

func priceList(items []models.ServiceCatalogItem) string {
	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "- %s: $%.2f\n", it.Name, it.Price)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) llmReply(ctx context.Context, message string) (string, error) {
	items, err := b.catalog.ListActive(ctx)
	if err != nil {
		return "", errors.Annotate(err, "chatbot catalog")
	}
	return b.llm.Complete(ctx, b.systemPrompt(items), message)
}

func (b *Bot) systemPrompt(items []models.ServiceCatalogItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres el asistente virtual del taller mecánico %s. Responde en español, breve y amable.\n", b.shop.Name)
	sb.WriteString("Usa solo los datos de abajo. Si no sabes algo, invita a llamar al taller. ")
	sb.WriteString("Nunca inventes el estado de un vehículo: pide el código de seguimiento de 8 caracteres.\n\n")
	fmt.Fprintf(&sb, "Horario: %s\n", b.shop.Hours)
	if b.shop.Address != "" {
		fmt.Fprintf(&sb, "Dirección: %s\n", b.shop.Address)
	}
	if b.shop.Phone != "" {
		fmt.Fprintf(&sb, "Teléfono: %s\n", b.shop.Phone)
	}
	for _, br := range b.branches {
		fmt.Fprintf(&sb, "Sucursal: %s\n", br.Name)
	}
	if len(items) > 0 {
		sb.WriteString("Servicios y precios (MXN):\n")
		sb.WriteString(priceList(items))
		sb.WriteString("\n")
	}
	return sb.String()
}
