package statement

// Category is one entry of the closed category enumeration. Value is the
// stored identifier; Label is for display.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Categories is the fixed closed enumeration of transaction categories.
// Persistence only ever accepts category values drawn from this list.
var Categories = []Category{
	{Value: "food-dining", Label: "Food & Dining"},
	{Value: "shopping", Label: "Shopping"},
	{Value: "entertainment", Label: "Entertainment"},
	{Value: "bills-utilities", Label: "Bills & Utilities"},
	{Value: "auto-transport", Label: "Auto & Transport"},
	{Value: "travel", Label: "Travel"},
	{Value: "fees-charges", Label: "Fees & Charges"},
	{Value: "business-services", Label: "Business Services"},
	{Value: "personal-care", Label: "Personal Care"},
	{Value: "education", Label: "Education"},
	{Value: "healthcare", Label: "Healthcare"},
	{Value: "kids", Label: "Kids"},
	{Value: "gifts-donations", Label: "Gifts & Donations"},
	{Value: "investments", Label: "Investments"},
	{Value: "income", Label: "Income"},
	{Value: "taxes", Label: "Taxes"},
	{Value: "rent-mortgage", Label: "Rent & Mortgage"},
	{Value: "insurance", Label: "Insurance"},
	{Value: "cash-atm", Label: "Cash & ATM"},
	{Value: "transfer", Label: "Transfer"},
	{Value: "other", Label: "Other"},
}

var categorySet = func() map[string]bool {
	set := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		set[c.Value] = true
	}
	return set
}()

// ValidCategory reports whether value is a member of the closed
// enumeration. The empty string is not a valid category.
func ValidCategory(value string) bool {
	return categorySet[value]
}
