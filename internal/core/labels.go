package core

// Bank is an option of the account form.
type Bank struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Banks lists the banks offered when opening an account.
var Banks = []Bank{
	{"banco-do-brasil", "Banco do Brasil"},
	{"bradesco", "Bradesco"},
	{"caixa", "Caixa Econômica Federal"},
	{"itau", "Itaú"},
	{"santander", "Santander"},
	{"nubank", "Nubank"},
	{"inter", "Banco Inter"},
	{"c6", "C6 Bank"},
	{"original", "Banco Original"},
	{"next", "Next"},
	{"outro", "Outro"},
}

// BankLabel returns the display name of a bank, or the value itself when unknown.
func BankLabel(value string) string {
	for _, b := range Banks {
		if b.Value == value {
			return b.Label
		}
	}
	return value
}

var categoryLabels = map[CategoryID]string{
	"salary":        "Salário",
	"investment":    "Investimento",
	"other_income":  "Outras Receitas",
	"food":          "Alimentação",
	"transport":     "Transporte",
	"housing":       "Moradia",
	"utilities":     "Contas",
	"entertainment": "Entretenimento",
	"health":        "Saúde",
	"education":     "Educação",
	"other_expense": "Outras Despesas",
}

// CategoryLabel returns the display name of a built-in category slug.
// Backend categories already carry their own name.
func CategoryLabel(id CategoryID) string {
	if l, ok := categoryLabels[id]; ok {
		return l
	}
	return string(id)
}

// AccountLabel is how an account reference is shown in lists.
func AccountLabel(ref AccountRef, accounts []Account) string {
	id, ok := ref.ID()
	if !ok {
		return "Dinheiro em Espécie"
	}
	for _, a := range accounts {
		if a.ID == id {
			return a.Name + " - " + BankLabel(a.Bank)
		}
	}
	return "Conta desconhecida"
}
