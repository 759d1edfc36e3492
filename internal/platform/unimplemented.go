package platform

import "context"

// Unimplemented stands in for platforms nobody can post to yet. Every post
// attempt fails with the same fixed message.
type Unimplemented struct {
	Name Platform
}

func (u Unimplemented) Platform() Platform {
	return u.Name
}

func (u Unimplemented) IsConnected(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}

func (u Unimplemented) Post(ctx context.Context, userID int64, req PostRequest) (Result, error) {
	return Failed("%s posting not yet implemented", u.Name), nil
}
