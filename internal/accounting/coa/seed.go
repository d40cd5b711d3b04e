package coa

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
)

// Names of the predefined groups other packages look up.
const (
	GroupCapital            = "Capital Account"
	GroupCurrentAssets      = "Current Assets"
	GroupCurrentLiabilities = "Current Liabilities"
	GroupBankAccounts       = "Bank Accounts"
	GroupCashInHand         = "Cash-in-Hand"
	GroupDutiesAndTaxes     = "Duties & Taxes"
	GroupSundryDebtors      = "Sundry Debtors"
	GroupSundryCreditors    = "Sundry Creditors"
	GroupSalesAccounts      = "Sales Accounts"
	GroupPurchaseAccounts   = "Purchase Accounts"
	GroupDirectIncomes      = "Direct Incomes"
	GroupDirectExpenses     = "Direct Expenses"
	GroupIndirectIncomes    = "Indirect Incomes"
	GroupIndirectExpenses   = "Indirect Expenses"
)

// Names of the predefined ledgers.
const (
	LedgerCash          = "Cash"
	LedgerProfitAndLoss = "Profit & Loss A/c"
	LedgerOutputCGST    = "Output CGST"
	LedgerOutputSGST    = "Output SGST"
	LedgerOutputIGST    = "Output IGST"
	LedgerInputCGST     = "Input CGST"
	LedgerInputSGST     = "Input SGST"
	LedgerInputIGST     = "Input IGST"
)

type seedGroup struct {
	name   string
	parent string
	nature accounting.Nature
	gross  bool
}

var systemGroups = []seedGroup{
	{name: "Branch / Divisions", nature: accounting.NatureLiabilities},
	{name: GroupCapital, nature: accounting.NatureLiabilities},
	{name: "Reserves & Surplus", parent: GroupCapital, nature: accounting.NatureLiabilities},
	{name: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: GroupBankAccounts, parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: GroupCashInHand, parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: "Deposits (Asset)", parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: "Loans & Advances (Asset)", parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: "Stock-in-Hand", parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: GroupSundryDebtors, parent: GroupCurrentAssets, nature: accounting.NatureAssets},
	{name: GroupCurrentLiabilities, nature: accounting.NatureLiabilities},
	{name: GroupDutiesAndTaxes, parent: GroupCurrentLiabilities, nature: accounting.NatureLiabilities},
	{name: "Provisions", parent: GroupCurrentLiabilities, nature: accounting.NatureLiabilities},
	{name: GroupSundryCreditors, parent: GroupCurrentLiabilities, nature: accounting.NatureLiabilities},
	{name: "Fixed Assets", nature: accounting.NatureAssets},
	{name: "Investments", nature: accounting.NatureAssets},
	{name: "Loans (Liability)", nature: accounting.NatureLiabilities},
	{name: "Bank OD A/c", parent: "Loans (Liability)", nature: accounting.NatureLiabilities},
	{name: "Secured Loans", parent: "Loans (Liability)", nature: accounting.NatureLiabilities},
	{name: "Unsecured Loans", parent: "Loans (Liability)", nature: accounting.NatureLiabilities},
	{name: "Misc. Expenses (ASSET)", nature: accounting.NatureAssets},
	{name: "Suspense A/c", nature: accounting.NatureLiabilities},
	{name: GroupSalesAccounts, nature: accounting.NatureIncome, gross: true},
	{name: GroupDirectIncomes, nature: accounting.NatureIncome, gross: true},
	{name: GroupIndirectIncomes, nature: accounting.NatureIncome},
	{name: GroupPurchaseAccounts, nature: accounting.NatureExpenses, gross: true},
	{name: GroupDirectExpenses, nature: accounting.NatureExpenses, gross: true},
	{name: GroupIndirectExpenses, nature: accounting.NatureExpenses},
}

type seedLedger struct {
	name  string
	group string
	tax   accounting.TaxType
}

var systemLedgers = []seedLedger{
	{name: LedgerCash, group: GroupCashInHand},
	{name: LedgerProfitAndLoss, group: "Reserves & Surplus"},
	{name: LedgerOutputCGST, group: GroupDutiesAndTaxes, tax: accounting.TaxCGST},
	{name: LedgerOutputSGST, group: GroupDutiesAndTaxes, tax: accounting.TaxSGST},
	{name: LedgerOutputIGST, group: GroupDutiesAndTaxes, tax: accounting.TaxIGST},
	{name: LedgerInputCGST, group: GroupDutiesAndTaxes, tax: accounting.TaxCGST},
	{name: LedgerInputSGST, group: GroupDutiesAndTaxes, tax: accounting.TaxSGST},
	{name: LedgerInputIGST, group: GroupDutiesAndTaxes, tax: accounting.TaxIGST},
}

// SeedID derives a stable id for a predefined record of a company so reseeding is idempotent.
func SeedID(companyID uuid.UUID, kind, name string) uuid.UUID {
	return uuid.NewSHA1(companyID, []byte(kind+":"+name))
}

// SeedGroups returns the predefined groups and ledgers every company starts with.
func SeedGroups(companyID uuid.UUID) ([]accounting.LedgerGroup, []accounting.Ledger) {
	groups := make([]accounting.LedgerGroup, 0, len(systemGroups))
	for _, sg := range systemGroups {
		g := accounting.LedgerGroup{
			ID:                 SeedID(companyID, "group", sg.name),
			Name:               sg.name,
			Nature:             sg.nature,
			IsSystem:           true,
			AffectsGrossProfit: sg.gross,
		}
		if sg.parent != "" {
			pid := SeedID(companyID, "group", sg.parent)
			g.ParentID = &pid
		}
		groups = append(groups, g)
	}
	ledgers := make([]accounting.Ledger, 0, len(systemLedgers))
	for _, sl := range systemLedgers {
		l := accounting.Ledger{
			ID:             SeedID(companyID, "ledger", sl.name),
			Name:           sl.name,
			GroupID:        SeedID(companyID, "group", sl.group),
			OpeningBalance: decimal.Zero,
			OpeningSide:    accounting.SideDr,
			IsSystem:       true,
		}
		if sl.tax != "" {
			l.GST = &accounting.LedgerGST{TaxType: sl.tax}
		}
		ledgers = append(ledgers, l)
	}
	return groups, ledgers
}

// Seeded builds a chart holding only the predefined records.
func Seeded(companyID uuid.UUID) *Chart {
	groups, ledgers := SeedGroups(companyID)
	c, err := New(groups, ledgers)
	if err != nil {
		panic("coa: predefined chart is invalid: " + err.Error())
	}
	return c
}
