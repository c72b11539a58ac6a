package mail

// DeliveryMessage is everything needed to render and address the purchase delivery email.
type DeliveryMessage struct {
	To           string
	Subject      string
	CustomerName string
	ProductName  string
	DownloadURL  string
}

type From struct {
	Address string
	Name    string
}

func (f From) String() string {
	if f.Name == "" {
		return f.Address
	}
	return f.Name + " <" + f.Address + ">"
}
