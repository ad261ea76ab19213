package presence

import "context"

// Tracker records which users have at least one live connection.
type Tracker interface {
	Online(ctx context.Context, userID, connectionID string) error
	Offline(ctx context.Context, userID, connectionID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
}
