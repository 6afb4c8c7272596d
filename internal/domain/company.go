package domain

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Person struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Title    string `json:"title"`
}

type Space struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Mission string `json:"mission"`
}

type CompanyPage struct {
	Company Company  `json:"company"`
	Spaces  []Space  `json:"spaces"`
	People  []Person `json:"people"`
}

type SpacePage struct {
	Space    Space     `json:"space"`
	Members  []Person  `json:"members"`
	Goals    []Goal    `json:"goals"`
	Projects []Project `json:"projects"`
}
