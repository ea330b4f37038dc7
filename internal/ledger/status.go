package ledger

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {StatusSent: true},
	StatusSent:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
