package i18n

type Language string

const (
	Italian Language = "it"
	English Language = "en"
)

var currentLang = Italian

type Messages struct {
	// General
	Error   string
	Saved   string
	Unsaved string
	Tabs    string
	Help    string

	// Modes
	ModeNormal string
	ModeEdit   string
	ModeRename string

	// Dialogs
	NewTab          string
	RenameTab       string
	CloseTab        string
	CloseConfirm    string
	NamePlaceholder string
	NotePlaceholder string
	EnterConfirm    string
	EscCancel       string

	// Keys descriptions (short)
	KeyUp     string
	KeyDown   string
	KeyEdit   string
	KeyEscape string
	KeySave   string
	KeyNew    string
	KeyRename string
	KeyClose  string
	KeySync   string
	KeyImport string
	KeyHelp   string
	KeyQuit   string

	// Setup prompts
	SyncURLPrompt string
	SyncKeyPrompt string
	SkipHint      string
	SetupDone     string

	// Sync
	Syncing       string
	Importing     string
	SyncOff       string
	NotConfigured string
	SyncError     string
	SyncSummary   string
	ImportSummary string
	LastSync      string
	Never         string
	Offline       string
}

var translations = map[Language]Messages{
	Italian: {
		Error:   "Errore",
		Saved:   "Salvato",
		Unsaved: "Non salvato",
		Tabs:    "Schede",
		Help:    "Aiuto",

		ModeNormal: "NORMALE",
		ModeEdit:   "MODIFICA",
		ModeRename: "RINOMINA",

		NewTab:          "Nuova Scheda",
		RenameTab:       "Rinomina Scheda",
		CloseTab:        "Chiudi Scheda",
		CloseConfirm:    "Chiudere '%s'? [s/n]",
		NamePlaceholder: "nome.md",
		NotePlaceholder: "Scrivi qui...",
		EnterConfirm:    "[Enter] Conferma",
		EscCancel:       "[Esc] Annulla",

		KeyUp:     "su",
		KeyDown:   "giù",
		KeyEdit:   "modifica",
		KeyEscape: "esci modifica",
		KeySave:   "salva",
		KeyNew:    "nuova",
		KeyRename: "rinomina",
		KeyClose:  "chiudi",
		KeySync:   "sincronizza",
		KeyImport: "importa",
		KeyHelp:   "aiuto",
		KeyQuit:   "esci",

		SyncURLPrompt: "  URL del server di sync (invio per saltare): ",
		SyncKeyPrompt: "  API key: ",
		SkipHint:      "  Sync disattivato. Modifica config.yml per attivarlo.",
		SetupDone:     "  Configurazione creata!",

		Syncing:       "Sincronizzazione...",
		Importing:     "Importazione...",
		SyncOff:       "Sync disattivato",
		NotConfigured: "Sync non configurato",
		SyncError:     "Errore di sync",
		SyncSummary:   "%d sincronizzate, %d fallite",
		ImportSummary: "%d nuove, %d aggiornate",
		LastSync:      "ultimo sync %s",
		Never:         "mai",
		Offline:       "Offline",
	},
	English: {
		Error:   "Error",
		Saved:   "Saved",
		Unsaved: "Unsaved",
		Tabs:    "Tabs",
		Help:    "Help",

		ModeNormal: "NORMAL",
		ModeEdit:   "EDIT",
		ModeRename: "RENAME",

		NewTab:          "New Tab",
		RenameTab:       "Rename Tab",
		CloseTab:        "Close Tab",
		CloseConfirm:    "Close '%s'? [y/n]",
		NamePlaceholder: "name.md",
		NotePlaceholder: "Write here...",
		EnterConfirm:    "[Enter] Confirm",
		EscCancel:       "[Esc] Cancel",

		KeyUp:     "up",
		KeyDown:   "down",
		KeyEdit:   "edit",
		KeyEscape: "stop editing",
		KeySave:   "save",
		KeyNew:    "new",
		KeyRename: "rename",
		KeyClose:  "close",
		KeySync:   "sync",
		KeyImport: "import",
		KeyHelp:   "help",
		KeyQuit:   "quit",

		SyncURLPrompt: "  Sync server URL (enter to skip): ",
		SyncKeyPrompt: "  API key: ",
		SkipHint:      "  Sync disabled. Edit config.yml to enable it.",
		SetupDone:     "  Configuration created!",

		Syncing:       "Syncing...",
		Importing:     "Importing...",
		SyncOff:       "Sync off",
		NotConfigured: "Sync not configured",
		SyncError:     "Sync error",
		SyncSummary:   "%d synced, %d failed",
		ImportSummary: "%d new, %d updated",
		LastSync:      "last sync %s",
		Never:         "never",
		Offline:       "Offline",
	},
}

func SetLanguage(lang Language) {
	if _, ok := translations[lang]; ok {
		currentLang = lang
	}
}

func GetLanguage() Language {
	return currentLang
}

func T() Messages {
	return translations[currentLang]
}
