package entities

// BookingEmailData feeds the lifecycle email templates.
type BookingEmailData struct {
	UserName           string
	BookingCode        string
	CarMake            string
	CarModel           string
	StartDateFormatted string
	EndDateFormatted   string
	Status             string
	CurrentYear        int
}
