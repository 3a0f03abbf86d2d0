package store

import "testing"

func TestSettingsScopes(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db)

	// Unset keys fall back to the caller's default.
	if v, err := db.GetSetting("theme", "dark"); err != nil || v != "dark" {
		t.Errorf("global default = %q (err %v), want dark", v, err)
	}

	if err := db.SetSetting("theme", "light"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting("theme", "solarized"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSetting("theme", "dark"); v != "solarized" {
		t.Errorf("global after overwrite = %q, want solarized", v)
	}

	// Scopes are independent: the same key can hold different values.
	if err := db.SetAccountSetting(f.account.ID, "theme", "account-blue"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetConversationSetting(f.conv.ID, "theme", "conv-red"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSetting("theme", ""); v != "solarized" {
		t.Errorf("global = %q", v)
	}
	if v, _ := db.GetAccountSetting(f.account.ID, "theme", ""); v != "account-blue" {
		t.Errorf("account = %q", v)
	}
	if v, _ := db.GetConversationSetting(f.conv.ID, "theme", ""); v != "conv-red" {
		t.Errorf("conversation = %q", v)
	}

	// Deleting a conversation override falls back to the default again.
	if err := db.DeleteConversationSetting(f.conv.ID, "theme"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetConversationSetting(f.conv.ID, "theme", "fallback"); v != "fallback" {
		t.Errorf("conversation after delete = %q, want fallback", v)
	}
}

func TestAccountSettingsIsolatedPerAccount(t *testing.T) {
	db := testDB(t)
	a, err := db.CreateAccount("a@example.org", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.CreateAccount("b@example.org", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := db.SetAccountSetting(a.ID, "nick", "Alpha"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetAccountSetting(b.ID, "nick", "none"); v != "none" {
		t.Errorf("other account sees %q, want none", v)
	}
}
