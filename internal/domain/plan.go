package domain

// Plan describes a subscription tier shown on the pricing step.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Credits  int      `json:"credits"`
	Features []string `json:"features"`
}

// Plans returns the catalog. proCredits is the pack granted on upgrade.
func Plans(proCredits int) []Plan {
	return []Plan{
		{
			ID:       PlanFree,
			Name:     "Starter",
			Price:    "$0/month",
			Credits:  InitialCredits,
			Features: []string{"Standard Templates", "Basic Support"},
		},
		{
			ID:       PlanPro,
			Name:     "Professional",
			Price:    "$5/month",
			Credits:  proCredits,
			Features: []string{"Priority Generation", "Priority Support", "Document History"},
		},
	}
}

// UpgradeResponse is returned by POST /v1/billing/upgrade.
type UpgradeResponse struct {
	Granted int          `json:"granted"`
	Profile *ProfileView `json:"profile"`
}
