package gitlab

// GraphQL query documents and their response shapes. Only the fields the
// client consumes are declared; everything else in the server response is
// ignored by the decoder.

const currentUserQuery = `
query currentUser {
  currentUser {
    username
    name
    avatarUrl
  }
}`

type currentUserData struct {
	CurrentUser *struct {
		Username  string  `json:"username"`
		Name      string  `json:"name"`
		AvatarURL *string `json:"avatarUrl"`
	} `json:"currentUser"`
}

const repositoriesWithMembershipQuery = `
query repositoriesWithMembership($after: String, $first: Int) {
  currentUser {
    projectMemberships(after: $after, first: $first) {
      nodes {
        project {
          id
          name
          fullPath
          sshUrlToRepo
          httpUrlToRepo
        }
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`

type projectNode struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	FullPath      string  `json:"fullPath"`
	SSHURLToRepo  *string `json:"sshUrlToRepo"`
	HTTPURLToRepo *string `json:"httpUrlToRepo"`
}

type repositoriesWithMembershipData struct {
	CurrentUser *struct {
		ProjectMemberships *struct {
			Nodes []*struct {
				Project *projectNode `json:"project"`
			} `json:"nodes"`
			PageInfo PageInfo `json:"pageInfo"`
		} `json:"projectMemberships"`
	} `json:"currentUser"`
}

const searchProjectsQuery = `
query searchProjects($q: String, $membership: Boolean!, $sort: String, $after: String, $first: Int) {
  projects(search: $q, membership: $membership, sort: $sort, after: $after, first: $first) {
    nodes {
      id
      name
      fullPath
      sshUrlToRepo
      httpUrlToRepo
    }
    pageInfo {
      endCursor
      hasNextPage
    }
  }
}`

type searchProjectsData struct {
	Projects *struct {
		Nodes    []*projectNode `json:"nodes"`
		PageInfo PageInfo       `json:"pageInfo"`
	} `json:"projects"`
}

const findMergeRequestsQuery = `
query findMergeRequestsUsingSourceBranch($projectId: ID!, $sourceBranch: String!, $after: String, $first: Int) {
  project(fullPath: $projectId) {
    mergeRequests(sourceBranches: [$sourceBranch], after: $after, first: $first) {
      nodes {
        id
        iid
        title
        sourceBranch
        targetBranch
        state
        webUrl
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`

type findMergeRequestsData struct {
	Project *struct {
		MergeRequests *struct {
			Nodes []*struct {
				ID           string `json:"id"`
				IID          string `json:"iid"`
				Title        string `json:"title"`
				SourceBranch string `json:"sourceBranch"`
				TargetBranch string `json:"targetBranch"`
				State        string `json:"state"`
				WebURL       string `json:"webUrl"`
			} `json:"nodes"`
			PageInfo PageInfo `json:"pageInfo"`
		} `json:"mergeRequests"`
	} `json:"project"`
}
