package plan

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
)

// FeaturesVersion is the only features document layout currently understood:
//
//	{"version": 1, "flags": {"sso": true, "api_calls": 10000}}
const FeaturesVersion = 1

// EmptyFeatures is stored for plans created without a features document.
var EmptyFeatures = json.RawMessage(`{"version":1,"flags":{}}`)

type Features struct {
	raw gjson.Result
}

func ParseFeatures(doc json.RawMessage) (Features, error) {
	if len(doc) == 0 {
		doc = EmptyFeatures
	}
	if !gjson.ValidBytes(doc) {
		return Features{}, apperr.Invalid("plan.features", "features is not valid JSON")
	}
	r := gjson.ParseBytes(doc)
	if !r.IsObject() {
		return Features{}, apperr.Invalid("plan.features", "features must be an object")
	}
	if v := r.Get("version"); v.Int() != FeaturesVersion {
		return Features{}, apperr.Invalid("plan.features", "unsupported features version %s", v.Raw)
	}
	flags := r.Get("flags")
	if flags.Exists() && !flags.IsObject() {
		return Features{}, apperr.Invalid("plan.features", "flags must be an object")
	}
	var bad error
	flags.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.True && v.Type != gjson.False && v.Type != gjson.Number {
			bad = apperr.Invalid("plan.features", "flag %q must be a bool or a number", k.String())
			return false
		}
		return true
	})
	if bad != nil {
		return Features{}, bad
	}
	return Features{raw: r}, nil
}

// Enabled is true for a true flag or a positive numeric flag.
func (f Features) Enabled(key string) bool {
	v := f.flag(key)
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float() > 0
	}
	return false
}

func (f Features) Number(key string) (float64, bool) {
	v := f.flag(key)
	if v.Type != gjson.Number {
		return 0, false
	}
	return v.Float(), true
}

func (f Features) Flags() map[string]any {
	out := map[string]any{}
	f.raw.Get("flags").ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.Value()
		return true
	})
	return out
}

func (f Features) flag(key string) gjson.Result {
	return f.raw.Get("flags." + gjson.Escape(key))
}
