package violation

// AnalyzeProfile always returns a zero score with no reasons; no per-user
// behavioral baseline (country set, hour-of-day distribution, daily
// distinct-IP count) is kept or compared.
func AnalyzeProfile() ProfileResult {
	return ProfileResult{}
}

// ProfileResult mirrors the shape of the other sub-analyzer results so the
// orchestrator can treat all five uniformly.
type ProfileResult struct {
	Score   float64
	Reasons []string
}
