package scenario

var defaultScenarios = []Scenario{
	{Name: "Airport", Roles: []string{"Pilot", "Passenger", "Security Officer", "Flight Attendant", "Customs Officer", "Air Traffic Controller"}},
	{Name: "Beach", Roles: []string{"Lifeguard", "Surfer", "Tourist", "Vendor", "Beach Cleaner", "Photographer"}},
	{Name: "Casino", Roles: []string{"Dealer", "Gambler", "Bartender", "Security", "Waitress", "Manager"}},
	{Name: "Hospital", Roles: []string{"Doctor", "Nurse", "Patient", "Surgeon", "Receptionist", "Ambulance Driver"}},
	{Name: "Space Station", Roles: []string{"Scientist", "Astronaut", "Engineer", "Commander", "Pilot", "Researcher"}},
	{Name: "School", Roles: []string{"Teacher", "Student", "Principal", "Janitor", "Librarian", "Coach"}},
	{Name: "Restaurant", Roles: []string{"Chef", "Waiter", "Customer", "Manager", "Dishwasher", "Host"}},
	{Name: "Bank", Roles: []string{"Teller", "Customer", "Manager", "Security Guard", "Loan Officer", "Janitor"}},
	{Name: "Cruise Ship", Roles: []string{"Captain", "Passenger", "Waiter", "Engineer", "Entertainment Staff", "Security"}},
	{Name: "Hotel", Roles: []string{"Guest", "Receptionist", "Bellhop", "Manager", "Housekeeper", "Bartender"}},
	{Name: "Movie Theater", Roles: []string{"Moviegoer", "Projectionist", "Usher", "Concession Worker", "Manager", "Janitor"}},
	{Name: "Library", Roles: []string{"Librarian", "Student", "Author", "Janitor", "Security Guard", "Volunteer"}},
	{Name: "Police Station", Roles: []string{"Police Officer", "Detective", "Criminal", "Lawyer", "Reporter", "Dispatcher"}},
	{Name: "Subway", Roles: []string{"Passenger", "Tourist", "Conductor", "Security Officer", "Musician", "Ticket Inspector"}},
	{Name: "Art Museum", Roles: []string{"Visitor", "Security Guard", "Artist", "Curator", "Guide", "Student"}},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return MustCatalog(defaultScenarios)
}
