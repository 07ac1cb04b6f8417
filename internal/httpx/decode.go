package httpx

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tracklet-io/tracklet/internal/apperr"
)

// DecodeBody decodes a JSON or YAML request body into target, selected
// by Content-Type. An absent or unrecognized Content-Type is treated as
// JSON. The body is capped at maxBytes.
func DecodeBody(r *http.Request, maxBytes int64, target any) error {
	const op = "httpx.DecodeBody"

	body := http.MaxBytesReader(nil, r.Body, maxBytes)

	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			ct = parsed
		}
	}

	switch {
	case strings.Contains(ct, "yaml"):
		raw, err := io.ReadAll(body)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "read request body", err)
		}
		// YAML decodes through an intermediate map so the target's json
		// tags apply, matching the JSON path's field names exactly.
		var intermediate map[string]any
		if err := yaml.Unmarshal(raw, &intermediate); err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "invalid YAML body", err)
		}
		encoded, err := json.Marshal(intermediate)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "invalid YAML body", err)
		}
		if err := json.Unmarshal(encoded, target); err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "invalid YAML body", err)
		}
		return nil
	default:
		decoder := json.NewDecoder(body)
		if err := decoder.Decode(target); err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "invalid JSON body", err)
		}
		return nil
	}
}
