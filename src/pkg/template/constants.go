package template

const (
	ToolCommentCheckToken   = "$CHECK$"
	ToolCommentSignature    = `<!-- conftest-annotate: $CHECK$ - auto-generated comment, please do not remove -->`
	FileNameSummaryTemplate = "summary.md.tmpl"
)
