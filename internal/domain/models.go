package domain

import "strings"

// ModelVariant is one size tier of the offline speech-recognition model.
// Larger variants trade speed for accuracy.
type ModelVariant string

const (
	ModelTiny   ModelVariant = "tiny"
	ModelBase   ModelVariant = "base"
	ModelSmall  ModelVariant = "small"
	ModelMedium ModelVariant = "medium"
)

// ModelVariants lists selectable variants in ascending size order.
var ModelVariants = []ModelVariant{ModelTiny, ModelBase, ModelSmall, ModelMedium}

// ParseModelVariant resolves a stored settings value to a known variant.
func ParseModelVariant(raw string) (ModelVariant, bool) {
	v := ModelVariant(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ModelVariants {
		if v == known {
			return known, true
		}
	}
	return "", false
}

// FileName returns the canonical on-disk file name for the variant.
func (v ModelVariant) FileName() string {
	return "model-" + strings.ToLower(string(v)) + ".bin"
}

// DownloadURL returns the remote distribution source for the variant.
func (v ModelVariant) DownloadURL() string {
	return "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-" + strings.ToLower(string(v)) + ".bin"
}

// ModelAsset describes the local cache state of one model variant.
type ModelAsset struct {
	Variant    ModelVariant `json:"variant"`
	Path       string       `json:"path"`
	Downloaded bool         `json:"downloaded"`
}

// ModelOption is one variant with display metadata for the model picker.
type ModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	LocalPath   string `json:"localPath,omitempty"`
}

// CaptionTrack identifies one language-tagged caption track offered by
// the source platform. Fetched per run, never persisted.
type CaptionTrack struct {
	LanguageCode string `json:"languageCode"`
	LanguageName string `json:"languageName"`
	Name         string `json:"name,omitempty"`
}
