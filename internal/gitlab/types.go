package gitlab

// UserDetails describes the authenticated GitLab user.
type UserDetails struct {
	// Username is unique within the GitLab instance.
	Username string
	// Name is the display name.
	Name string
	// AvatarURL can be absolute or server-relative.
	AvatarURL string
}

// RepositoryRef is a project reference returned by search and membership
// queries, carrying both clone URL forms.
type RepositoryRef struct {
	ID       string
	Name     string
	SSHURL   string
	HTTPSURL string
}

// MergeRequestState is the client-side state classification of a merge
// request. Server states the client does not know map to StateOther so new
// server-side states never break parsing.
type MergeRequestState string

const (
	StateOpen   MergeRequestState = "open"
	StateClosed MergeRequestState = "closed"
	StateLocked MergeRequestState = "locked"
	StateMerged MergeRequestState = "merged"
	StateOther  MergeRequestState = "other"
)

func mapState(apiState string) MergeRequestState {
	switch apiState {
	case "opened":
		return StateOpen
	case "merged":
		return StateMerged
	case "closed":
		return StateClosed
	case "locked":
		return StateLocked
	default:
		return StateOther
	}
}

// MergeRequest is an immutable snapshot of a merge request as reported by
// the server.
type MergeRequest struct {
	ID           string
	IID          string
	Title        string
	SourceBranch string
	TargetBranch string
	State        MergeRequestState
	WebURL       string
}

// PageInfo drives GraphQL cursor pagination. The initial state is "first
// page": no cursor, hasNextPage true.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

func firstPage() PageInfo {
	return PageInfo{EndCursor: nil, HasNextPage: true}
}
