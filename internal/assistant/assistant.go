// Package assistant answers questions about coffee leaf diseases by
// matching keywords in the question.
package assistant

import "strings"

// Greeting is sent when chat opens after a disease is detected.
const Greeting = "You can now ask questions about the disease or remedies."

type topic struct {
	keywords []string
	answer   string
}

// Topics are checked in order; the first keyword hit wins.
var topics = []topic{
	{
		keywords: []string{"miner", "leaf miner", "clm"},
		answer: "Coffee Leaf Miner (CLM) creates tunnels in leaves. Remove infected leaves, use sticky traps, " +
			"and apply insecticides if needed. Proper sanitation is essential.",
	},
	{
		keywords: []string{"rust", "orange", "powder", "fungal"},
		answer: "Leaf Rust causes orange-brown pustules. Remove affected leaves, improve airflow, apply sulfur " +
			"fungicides, and avoid overhead watering. It thrives in humid conditions.",
	},
	{
		keywords: []string{"phoma", "brown", "spot", "necrosis"},
		answer: "Phoma causes brown spots on leaves. Remove and destroy infected leaves, apply fungicides, " +
			"sterilize tools, and maintain good sanitation practices.",
	},
	{
		keywords: []string{"prevent", "prevention", "avoid", "protect"},
		answer: "Prevent disease by maintaining good spacing, avoiding overhead watering, removing fallen leaves, " +
			"pruning regularly, and monitoring for early signs. Use disease-resistant varieties when possible.",
	},
	{
		keywords: []string{"fungicide", "treatment", "spray", "pesticide"},
		answer: "Apply fungicides when disease appears. Copper-based products for miners, sulfur for rust. " +
			"Always follow label directions and apply during dry conditions for best results.",
	},
}

// DefaultAnswer is returned when no topic matches.
const DefaultAnswer = "Coffee diseases require proper management. The remedies shown focus on removing affected " +
	"parts, improving air circulation, and applying appropriate treatments. Ask about specific diseases or " +
	"prevention methods."

// Answer returns the canned response for question.
func Answer(question string) string {
	q := strings.ToLower(question)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(q, kw) {
				return t.answer
			}
		}
	}
	return DefaultAnswer
}
