package policy

// defaultQuotes is the built-in overlay text list.
var defaultQuotes = []string{
	"Stay Focused!",
	"The secret of getting ahead is getting started.",
	"Focus on being productive instead of busy.",
	"You can't do big things if you're distracted by small things.",
	"Discipline is choosing what you want most over what you want now.",
	"Where focus goes, energy flows.",
	"Starve your distractions, feed your focus.",
	"Do the hard thing first.",
	"Your future self will thank you.",
	"One task at a time.",
}

// DefaultQuotes returns a copy of the built-in overlay texts.
func DefaultQuotes() []string {
	out := make([]string, len(defaultQuotes))
	copy(out, defaultQuotes)
	return out
}
