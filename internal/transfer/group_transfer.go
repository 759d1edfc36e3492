package transfer

type MediaSubmission struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

type PostSubmission struct {
	Platform string            `json:"platform"`
	Text     string            `json:"text"`
	Media    []MediaSubmission `json:"media"`
}

type GroupSubmission struct {
	Posts []PostSubmission `json:"posts"`
}

type SubmitResponse struct {
	GroupID string `json:"groupId"`
	Status  string `json:"status"`
}

type PostStatusView struct {
	PostID           int64   `json:"postId"`
	Platform         string  `json:"platform"`
	Text             string  `json:"text"`
	Status           string  `json:"status"`
	DownloadStatus   string  `json:"downloadStatus"`
	DownloadProgress int     `json:"downloadProgress"`
	DownloadError    *string `json:"downloadError"`
	PostStatus       *string `json:"postStatus"`
	PostStatusText   *string `json:"postStatusText"`
	PlatformPostID   *string `json:"platformPostId"`
}

type StatusResponse struct {
	GroupID string           `json:"groupId"`
	Status  string           `json:"status"`
	Posts   []PostStatusView `json:"posts"`
}

type RetryResponse struct {
	OK           bool   `json:"ok"`
	RetriedCount int    `json:"retriedCount"`
	GroupID      string `json:"groupId,omitempty"`
	Message      string `json:"message,omitempty"`
}
