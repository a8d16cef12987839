package model

// RemoteJob is the job description handed to the remote execution path.
// It carries no progress information.
type RemoteJob struct {
	FootageID        int64  `json:"itemId"`
	SourceStorageKey string `json:"sourceStorageKey"`
	OutputBasePath   string `json:"outputBasePath"`
	DeleteOriginal   bool   `json:"deleteOriginal"`
}

// WebhookSecretHeader carries the shared secret on rendition callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookStatus is the overall outcome reported by the remote worker.
type WebhookStatus string

const (
	WebhookCompleted WebhookStatus = "completed"
	WebhookFailed    WebhookStatus = "failed"
)

// RenditionResult is the outcome of one quality preset.
type RenditionResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebhookPayload summarizes a whole remote run. Filename fields that are nil
// were not produced and must leave the catalog untouched.
type WebhookPayload struct {
	FootageID         int64                      `json:"itemId"`
	Status            WebhookStatus              `json:"status"`
	PerQualityResults map[string]RenditionResult `json:"perQualityResults"`
	MainFilename      *string                    `json:"mainFilename"`
	Filename240p      *string                    `json:"filename_240p"`
	Filename360p      *string                    `json:"filename_360p"`
	Filename480p      *string                    `json:"filename_480p"`
	Filename720p      *string                    `json:"filename_720p"`
	Filename1080p     *string                    `json:"filename_1080p"`
	Error             string                     `json:"error,omitempty"`
}

// QualityFilenames returns the non-nil per-quality filename fields.
func (p *WebhookPayload) QualityFilenames() map[string]string {
	out := make(map[string]string)
	for label, ptr := range p.filenameFields() {
		if *ptr != nil {
			out[label] = **ptr
		}
	}
	return out
}

// SetQualityFilename fills the filename field for a quality label.
func (p *WebhookPayload) SetQualityFilename(label, filename string) error {
	ptr, ok := p.filenameFields()[label]
	if !ok {
		return ErrUnknownQuality
	}
	name := filename
	*ptr = &name
	return nil
}

func (p *WebhookPayload) filenameFields() map[string]**string {
	return map[string]**string{
		Quality240p:  &p.Filename240p,
		Quality360p:  &p.Filename360p,
		Quality480p:  &p.Filename480p,
		Quality720p:  &p.Filename720p,
		Quality1080p: &p.Filename1080p,
	}
}
