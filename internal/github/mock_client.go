package github

import "context"

// MockClient is an in-memory RemoteAPIClient for tests
type MockClient struct {
	GetCommitStatusFunc func(project *Project, ref string) (*CommitStatus, error)
	GetCheckRunsFunc    func(project *Project, ref string) ([]CheckRun, error)
	GetRepositoryFunc   func(project *Project) (*RepoInfo, error)

	// Track calls
	StatusCalls     []MockAPICall
	CheckRunCalls   []MockAPICall
	RepositoryCalls []MockAPICall
}

// MockAPICall records a single API request
type MockAPICall struct {
	Project string
	Ref     string
}

// NewMockClient creates a mock that reports no statuses by default
func NewMockClient() *MockClient {
	return &MockClient{}
}

// TotalCalls returns the number of requests of any kind
func (m *MockClient) TotalCalls() int {
	return len(m.StatusCalls) + len(m.CheckRunCalls) + len(m.RepositoryCalls)
}

// GetCommitStatus mock implementation
func (m *MockClient) GetCommitStatus(_ context.Context, project *Project, ref string) (*CommitStatus, error) {
	m.StatusCalls = append(m.StatusCalls, MockAPICall{Project: project.String(), Ref: ref})

	if m.GetCommitStatusFunc != nil {
		return m.GetCommitStatusFunc(project, ref)
	}

	return &CommitStatus{State: StatePending}, nil
}

// GetCheckRuns mock implementation
func (m *MockClient) GetCheckRuns(_ context.Context, project *Project, ref string) ([]CheckRun, error) {
	m.CheckRunCalls = append(m.CheckRunCalls, MockAPICall{Project: project.String(), Ref: ref})

	if m.GetCheckRunsFunc != nil {
		return m.GetCheckRunsFunc(project, ref)
	}

	return nil, &APIError{Op: "fetch check runs", Project: project.String(), Ref: ref, Kind: ErrUnsupported}
}

// GetRepository mock implementation
func (m *MockClient) GetRepository(_ context.Context, project *Project) (*RepoInfo, error) {
	m.RepositoryCalls = append(m.RepositoryCalls, MockAPICall{Project: project.String()})

	if m.GetRepositoryFunc != nil {
		return m.GetRepositoryFunc(project)
	}

	return &RepoInfo{Owner: project.Owner, Name: project.Name}, nil
}
