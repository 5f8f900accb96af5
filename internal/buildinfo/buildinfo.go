package buildinfo

// Version, Commit and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier for banners and window titles.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		if len(Commit) > 7 {
			return Commit[:7]
		}
		return Commit
	}
	return "dev"
}

// Banner is the boot line printed before the scheduler starts.
func Banner(name string) string {
	s := name + " " + Short()
	if Date != "" && Date != "unknown" {
		s += " (" + Date + ")"
	}
	return s
}
