package model

// Airtable field names of the Generation table.
const (
	FieldLink            = "Link"
	FieldSourceVideo     = "Source_Video"
	FieldCoverImage      = "Cover_Image"
	FieldCharacter       = "AI_Character"
	FieldGeneratedImages = "Generated_Images"
	FieldOutputVideo     = "Output_Video"
	FieldStatus          = "Status"
	FieldErrorMessage    = "Error_Message"
	FieldGenerate        = "Generate"
)

const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusComplete   = "Complete"
	StatusError      = "Error"
)

// Attachment is one entry of an Airtable attachment field. Writes only need
// the URL; Airtable re-hosts the asset and fills in the rest.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type RecordFields struct {
	Link            string       `json:"Link,omitempty"`
	SourceVideo     []Attachment `json:"Source_Video,omitempty"`
	CoverImage      []Attachment `json:"Cover_Image,omitempty"`
	Character       []Attachment `json:"AI_Character,omitempty"`
	GeneratedImages []Attachment `json:"Generated_Images,omitempty"`
	OutputVideo     []Attachment `json:"Output_Video,omitempty"`
	// Status is advisory only. Records created before the column existed
	// simply decode to the empty string.
	Status       string `json:"Status,omitempty"`
	ErrorMessage string `json:"Error_Message,omitempty"`
	Generate     bool   `json:"Generate,omitempty"`
}

// Record is one row of the Generation table.
type Record struct {
	ID     string       `json:"id"`
	Fields RecordFields `json:"fields"`
}

// HasSource reports whether the record carries enough input to resolve a
// source video: either a social link or an already-uploaded video.
func (r *Record) HasSource() bool {
	return r.Fields.Link != "" || len(r.Fields.SourceVideo) > 0
}

// HasCharacter reports whether the required character reference is present.
func (r *Record) HasCharacter() bool {
	return len(r.Fields.Character) > 0
}

// Completed reports whether the final output has already been produced.
func (r *Record) Completed() bool {
	return len(r.Fields.OutputVideo) > 0
}

// AttachmentURLs wraps plain URLs as attachment writes.
func AttachmentURLs(urls ...string) []map[string]string {
	out := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]string{"url": u})
	}
	return out
}
