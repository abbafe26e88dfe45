package text

// baseStopwords is the fixed set of common English function words excluded
// from frequency counts. Domain-specific additions are supplied per Filter.
var baseStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can",
	"do", "for", "from", "had", "has", "have", "he", "her", "here", "hers",
	"him", "his", "how", "i", "if", "in", "into", "is", "it", "its", "just",
	"me", "mine", "more", "most", "my", "no", "not", "now", "of", "on",
	"one", "or", "our", "ours", "out", "so", "than", "that", "the", "their",
	"theirs", "them", "there", "these", "they", "this", "those", "to", "too",
	"up", "very", "was", "we", "were", "what", "when", "where", "which",
	"who", "why", "will", "with", "you", "your", "yours",
}
