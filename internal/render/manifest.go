package render

import (
	"encoding/json"

	"newsreel/internal/fileutil"
	"newsreel/internal/subtitles"
)

const manifestVersion = 1

// manifest records what produced an output file.
type manifest struct {
	Version   int             `json:"version"`
	Settings  Settings        `json:"settings"`
	Images    []string        `json:"images"`
	Durations []float64       `json:"durations"`
	Audio     string          `json:"audio"`
	Narration float64         `json:"narration"`
	Cues      []subtitles.Cue `json:"cues"`
	Output    string          `json:"output,omitempty"`
}

func buildManifest(s Settings, plan Plan, audioPath string, cues []subtitles.Cue) (manifest, error) {
	m := manifest{
		Version:   manifestVersion,
		Settings:  s,
		Narration: plan.Narration,
		Cues:      cues,
	}
	for _, seg := range plan.Segments {
		digest, err := fileutil.Digest(seg.ImagePath)
		if err != nil {
			return manifest{}, err
		}
		m.Images = append(m.Images, digest)
		m.Durations = append(m.Durations, seg.Duration)
	}
	digest, err := fileutil.Digest(audioPath)
	if err != nil {
		return manifest{}, err
	}
	m.Audio = digest
	return m, nil
}

// Digest hashes the inputs and settings, excluding the recorded output digest.
func (m manifest) Digest() string {
	clone := m
	clone.Output = ""
	data, _ := json.Marshal(clone)
	return fileutil.DigestBytes(data)
}

func manifestPath(output string) string {
	return output + ".manifest.json"
}

func writeManifest(path string, m manifest) error {
	return fileutil.WriteJSON(path, m)
}

// upToDate reports whether output exists, matches its recorded digest, and
// was produced from inputs matching want.
func upToDate(output string, want manifest) bool {
	var have manifest
	if err := fileutil.ReadJSON(manifestPath(output), &have); err != nil {
		return false
	}
	if have.Digest() != want.Digest() || have.Output == "" {
		return false
	}
	digest, err := fileutil.Digest(output)
	if err != nil {
		return false
	}
	return digest == have.Output
}
