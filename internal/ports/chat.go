package ports

// ChatSender emits chat text to an external chat box.
type ChatSender interface {
	SendChat(text string) error
}

// OnboardingArtifact is pushed to every new channel once.
type OnboardingArtifact struct {
	Image string `json:"qrCode"`
	URL   string `json:"urlToQR"`
}

// OnboardingEncoder turns an endpoint URL into an artifact a client can display.
type OnboardingEncoder interface {
	Encode(url string) (OnboardingArtifact, error)
}
