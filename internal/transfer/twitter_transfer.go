package transfer

type TwitterProcessingInfo struct {
	State           string `json:"state"` // pending, in_progress, succeeded, failed
	CheckAfterSecs  int    `json:"check_after_secs"`
	ProgressPercent int    `json:"progress_percent"`
	Error           *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type TwitterMediaData struct {
	ID             string                 `json:"id"`
	MediaKey       string                 `json:"media_key"`
	ProcessingInfo *TwitterProcessingInfo `json:"processing_info,omitempty"`
}

type TwitterMediaResponse struct {
	Data TwitterMediaData `json:"data"`
}

type TwitterTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TwitterTweetRequest struct {
	Text  string             `json:"text,omitempty"`
	Media *TwitterTweetMedia `json:"media,omitempty"`
}

type TwitterTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TwitterError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
