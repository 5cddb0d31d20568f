package models

// PullRequest is the subset of pull request data the runner needs
type PullRequest struct {
	Number  int
	BaseRef string
	BaseSHA string
	HeadRef string
	HeadSHA string
}

// Comment is a pull request (issue) comment
type Comment struct {
	ID   int64
	Body string
}
