package web

import (
	"encoding/json"
	"net/http"
	"reflect"

	"storefront-ledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// buildSchemas reflects the published documents once at startup. Decimals are
// described as strings because that is how they are encoded.
func buildSchemas() map[string][]byte {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}

	docs := map[string]any{
		"reconciliation-report": core.ReconciliationReport{},
		"customer-order":        core.CustomerOrder{},
	}
	out := make(map[string][]byte, len(docs))
	for name, v := range docs {
		raw, err := json.Marshal(reflector.Reflect(v))
		if err != nil {
			panic("json schema for " + name + ": " + err.Error())
		}
		out[name] = raw
	}
	return out
}

// apiSchema handles GET /api/schemas/{name}.
func (h *Handler) apiSchema(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.schemas[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, r, "unknown schema", "NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(raw)
}
