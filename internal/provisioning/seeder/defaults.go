package seeder

// Default reference data for new tenants. The constructors return fresh
// slices so callers cannot mutate shared state; pass the results into
// Seed explicitly.

// DefaultCaseTypes returns the default case-type taxonomy with folder
// templates.
func DefaultCaseTypes() []CaseTypeConfig {
	return []CaseTypeConfig{
		{
			Name:        "solar",
			DisplayName: "Solar Litigation",
			Description: "Residential solar contract and financing disputes",
			Color:       "#f59e0b",
			Icon:        "sun",
			Folders: []FolderTemplate{
				{Name: "Pleadings", Path: "pleadings", SortOrder: 1, Required: true},
				{Name: "Discovery", Path: "discovery", SortOrder: 2, Required: true},
				{Name: "Written Discovery", Path: "discovery/written", ParentPath: "discovery", SortOrder: 1},
				{Name: "Depositions", Path: "discovery/depositions", ParentPath: "discovery", SortOrder: 2},
				{Name: "Contracts", Path: "contracts", SortOrder: 3, Required: true},
				{Name: "Correspondence", Path: "correspondence", SortOrder: 4},
				{Name: "Expert Reports", Path: "experts", SortOrder: 5},
			},
		},
		{
			Name:        "IMVA",
			DisplayName: "Immigrant Motor Vehicle Accident",
			Description: "Motor vehicle accident claims for immigrant clients",
			Color:       "#3b82f6",
			Icon:        "car",
			Folders: []FolderTemplate{
				{Name: "Intake", Path: "intake", SortOrder: 1, Required: true},
				{Name: "Medical Records", Path: "medical", SortOrder: 2, Required: true},
				{Name: "Bills", Path: "medical/bills", ParentPath: "medical", SortOrder: 1},
				{Name: "Police Report", Path: "police-report", SortOrder: 3, Required: true},
				{Name: "Insurance", Path: "insurance", SortOrder: 4},
				{Name: "Demand", Path: "demand", SortOrder: 5},
				{Name: "Litigation", Path: "litigation", SortOrder: 6},
			},
		},
		{
			Name:        "general",
			DisplayName: "General Matter",
			Description: "Uncategorized legal matters",
			Color:       "#6b7280",
			Icon:        "folder",
			Folders: []FolderTemplate{
				{Name: "Documents", Path: "documents", SortOrder: 1, Required: true},
				{Name: "Correspondence", Path: "correspondence", SortOrder: 2},
				{Name: "Notes", Path: "notes", SortOrder: 3},
			},
		},
	}
}

// DefaultTaskCategories returns the default task categories.
func DefaultTaskCategories() []TaskCategory {
	return []TaskCategory{
		{Name: "intake", Description: "Client intake and onboarding"},
		{Name: "filing", Description: "Court filings and deadlines"},
		{Name: "discovery", Description: "Discovery requests and responses"},
		{Name: "client-communication", Description: "Calls, emails and updates to the client"},
		{Name: "billing", Description: "Invoicing and trust accounting"},
		{Name: "review", Description: "Document and record review"},
	}
}
