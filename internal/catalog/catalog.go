// Package catalog holds the fixed set of image models this service knows how
// to drive, keyed by a short name the UI uses. Each entry maps to the model's
// external identifier and the default parameters it generates best with.
package catalog

// Descriptor describes one external image model.
type Descriptor struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"` // external model identifier, e.g. "black-forest-labs/flux-dev"
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

var models = map[string]Descriptor{
	"fluxDev": {
		Key:         "fluxDev",
		Name:        "black-forest-labs/flux-dev",
		DisplayName: "Flux Dev",
		Description: "Fast and creative image generation with a focus on artistic quality and speed.",
		Parameters: map[string]any{
			"guidance": 3.5,
		},
	},
	"stableDiffusion": {
		Key:         "stableDiffusion",
		Name:        "stability-ai/stable-diffusion-3.5-large",
		DisplayName: "Stable Diffusion 3.5",
		Description: "High-quality image generation with fine control over style and composition.",
		Parameters: map[string]any{
			"cfg":             4.5,
			"steps":           40,
			"aspect_ratio":    "1:1",
			"output_format":   "webp",
			"output_quality":  90,
			"prompt_strength": 0.85,
		},
	},
	"ideogram": {
		Key:         "ideogram",
		Name:        "ideogram-ai/ideogram-v2",
		DisplayName: "Ideogram v2",
		Description: "Specialized in creating unique illustrations with text integration and modern design.",
		Parameters: map[string]any{
			"resolution":          "None",
			"style_type":          "None",
			"aspect_ratio":        "16:9",
			"magic_prompt_option": "Auto",
		},
	},
}

// Resolve looks a model up by its short key or its external identifier.
// Unknown models are rejected upstream, nothing is passed through blind.
func Resolve(s string) (Descriptor, bool) {
	if d, ok := models[s]; ok {
		return d, true
	}
	for _, d := range models {
		if d.Name == s {
			return d, true
		}
	}
	return Descriptor{}, false
}

// All returns every descriptor, for rendering the model picker.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(models))
	for _, d := range models {
		out = append(out, d)
	}
	return out
}

// Defaults returns a fresh copy of the descriptor's default parameters so
// callers can overlay per-request values without mutating the catalog.
func (d Descriptor) Defaults() map[string]any {
	out := make(map[string]any, len(d.Parameters))
	for k, v := range d.Parameters {
		out[k] = v
	}
	return out
}
