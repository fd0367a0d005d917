package model

type StatusType string

const (
	StatusConnected StatusType = "connected"
	StatusSent      StatusType = "sent"
)

// Status is the acknowledgment returned by Connect and Send.
type Status struct {
	Type      StatusType `json:"type"`
	ServiceID string     `json:"serviceID"`
}

func Connected(serviceID string) Status {
	return Status{Type: StatusConnected, ServiceID: serviceID}
}

func Sent(serviceID string) Status {
	return Status{Type: StatusSent, ServiceID: serviceID}
}
