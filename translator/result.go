package translator

// Result is the pure output of one translation. It has no identity and no
// persistence relationship to execution entities.
//
// TranslatedCode may be non-empty even when Success is false: it holds
// whatever partial output was produced up to the failure point.
type Result struct {
	Success        bool
	TranslatedCode string
	Errors         []string
	Warnings       []string
}
