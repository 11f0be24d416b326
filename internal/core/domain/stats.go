package domain

type Stats struct {
	TotalConnections int `json:"totalConnections"`
	Agents           int `json:"agents"`
	Customers        int `json:"customers"`
	ActiveCalls      int `json:"activeCalls"`
}
