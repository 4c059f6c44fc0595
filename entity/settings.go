package entity

type Settings struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"topP"`
	TopK        float32 `json:"topK"`
}

func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		TopP:        0.95,
		TopK:        40,
	}
}

type Pathway string

const (
	PathwayHosted Pathway = "hosted"
	PathwayNative Pathway = "native"
)

type LocalStatus string

const (
	LocalStatusConnected    LocalStatus = "connected"
	LocalStatusDisconnected LocalStatus = "disconnected"
	LocalStatusPending      LocalStatus = "pending"
)
