package eventbus

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRoutingKey = errors.New("invalid routing key")

// Match applique la sémantique d'un topic exchange : mots séparés par ".",
// "*" remplace exactement un mot, "#" zéro ou plusieurs.
func Match(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(p, k []string) bool {
	for len(p) > 0 {
		switch p[0] {
		case "#":
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(k); i++ {
				if matchWords(p[1:], k[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(k) == 0 {
				return false
			}
		default:
			if len(k) == 0 || k[0] != p[0] {
				return false
			}
		}
		p, k = p[1:], k[1:]
	}
	return len(k) == 0
}

// validateRoutingKey refuse les clés de publication vides ou contenant des jokers.
func validateRoutingKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRoutingKey)
	}
	for _, w := range strings.Split(key, ".") {
		if w == "" || w == "*" || w == "#" || strings.ContainsAny(w, " >") {
			return fmt.Errorf("%w: %q", ErrInvalidRoutingKey, key)
		}
	}
	return nil
}

// subjectFor traduit un motif de routing key en sujet NATS sous le préfixe du topic.
// NATS n'accepte ">" qu'en dernière position, "#" ailleurs est donc refusé.
func subjectFor(topic, pattern string) (string, error) {
	words := strings.Split(pattern, ".")
	for i, w := range words {
		switch {
		case w == "":
			return "", fmt.Errorf("%w: %q", ErrInvalidRoutingKey, pattern)
		case w == "#":
			if i != len(words)-1 {
				return "", fmt.Errorf("%w: %q (\"#\" must be last)", ErrInvalidRoutingKey, pattern)
			}
			words[i] = ">"
		case strings.ContainsAny(w, " >"):
			return "", fmt.Errorf("%w: %q", ErrInvalidRoutingKey, pattern)
		}
	}
	return topic + "." + strings.Join(words, "."), nil
}

func routingKeyFromSubject(topic, subject string) string {
	return strings.TrimPrefix(subject, topic+".")
}
