package domain

// CommunityMessage is a post on the association's message board. Messages are append-only.
type CommunityMessage struct {
	ID            string `json:"id"`
	AuthorID      string `json:"authorId"`
	AuthorName    string `json:"authorName"`
	Content       string `json:"content"`
	Date          string `json:"date"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// NewMessage holds the caller-supplied fields of a post.
type NewMessage struct {
	AuthorID      string
	Content       string
	Date          string
	AttachmentURL string
}

// Validate requires an author and some content.
func (n NewMessage) Validate() error {
	if n.AuthorID == "" {
		return &ValidationError{Field: "author_id", Reason: "required"}
	}
	if n.Content == "" && n.AttachmentURL == "" {
		return &ValidationError{Field: "content", Reason: "required"}
	}
	return nil
}
