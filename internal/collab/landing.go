package collab

// DefaultLandingPage returns the bundled landing page for a form, used when
// the landing page collaborator fails. Forms without one return nil.
func DefaultLandingPage(formID int) *LandingPage {
	switch formID {
	case 1:
		return &LandingPage{
			FormID:  1,
			Enabled: true,
			Hero: Hero{
				Title:    "Register Your Team",
				Subtitle: "Join the league and compete with the best teams in the region",
				CTAText:  "Start Registration",
			},
			Features: []Feature{
				{Icon: "teams", Title: "Multi-Team Support", Description: "Register up to 20 age group teams under one organization"},
				{Icon: "palette", Title: "Custom Kit Design", Description: "Choose from our library of shirt designs and customize your team colors"},
				{Icon: "trending", Title: "Flexible Pricing", Description: "Set your own markup and entry fees for your team members"},
				{Icon: "compass", Title: "Team Portal", Description: "Access your dashboard to manage players, fixtures, and revenue"},
			},
			Benefits: Benefits{
				Title: "Why Join Our League?",
				Items: []string{
					"Professional league management system",
					"Dedicated team portal for easy administration",
					"Revenue tracking and payout system",
					"Custom branding for your team",
					"Support for multiple age groups",
				},
			},
			Stats: []Stat{
				{Number: "100+", Label: "Teams Registered"},
				{Number: "15", Label: "Age Categories"},
			},
		}
	case 2:
		return &LandingPage{
			FormID:  2,
			Enabled: true,
			Hero: Hero{
				Title:    "Join Your Team",
				Subtitle: "Register as a player and get ready for an exciting season ahead",
				CTAText:  "Register Now",
			},
			Features: []Feature{
				{Title: "Quick Registration", Description: "Simple process to get you registered and ready to play"},
				{Title: "Get Your Kit", Description: "Order your team kit and additional equipment all in one place"},
			},
			Benefits: Benefits{
				Title: "What You Get",
				Items: []string{
					"Official team kit with custom design",
					"Full season league participation",
					"Player profile in team portal",
					"Optional supporter merchandise",
				},
			},
			Stats: []Stat{
				{Number: "100+", Label: "Teams to Join"},
			},
		}
	}
	return nil
}
