package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"airpost/internal/store"
)

func TestShowsAddFetchesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"Media":{
			"id":130003,"idMal":48583,
			"title":{"romaji":"Bocchi the Rock!","english":"BOCCHI THE ROCK!"},
			"format":"TV","countryOfOrigin":"JP","source":"MANGA",
			"synonyms":["botchi"],"isAdult":false,"status":"RELEASING","duration":24
		}}}`)
	}))
	defer server.Close()

	env := setupCLITestEnv(t)
	env.cfg.AniList.BaseURL = server.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"shows", "add", "130003"}, env.configPath)
	if err != nil {
		t.Fatalf("shows add: %v", err)
	}
	requireContains(t, out, "Added Bocchi the Rock! (130003), enabled: yes")

	db, err := store.Open(env.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	show, err := db.GetShow(context.Background(), 130003)
	if err != nil {
		t.Fatalf("load show: %v", err)
	}
	if show == nil || !show.Enabled || !show.HasSource {
		t.Fatalf("unexpected show: %+v", show)
	}

	aliases, err := db.Aliases(context.Background(), 130003)
	if err != nil {
		t.Fatalf("load aliases: %v", err)
	}
	if len(aliases) != 1 || aliases[0] != "botchi" {
		t.Fatalf("unexpected aliases: %v", aliases)
	}

	out, _, err = runCLI(t, []string{"shows", "add", "130003"}, env.configPath)
	if err != nil {
		t.Fatalf("shows add again: %v", err)
	}
	requireContains(t, out, "already tracked")
}

func TestShowsUpdateDisablesEndedShow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"Media":{
			"id":101,"idMal":102,
			"title":{"romaji":"Great Pretender"},
			"format":"TV","countryOfOrigin":"JP","source":"ORIGINAL",
			"synonyms":[],"isAdult":false,"status":"FINISHED","duration":23
		}}}`)
	}))
	defer server.Close()

	env := setupCLITestEnv(t)
	env.cfg.AniList.BaseURL = server.URL
	writeTestConfig(t, env.configPath, env.cfg)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	seedShow(t, env, 101, "Great Pretender")

	out, _, err := runCLI(t, []string{"shows", "update"}, env.configPath)
	if err != nil {
		t.Fatalf("shows update: %v", err)
	}
	requireContains(t, out, "Disabled Great Pretender (101)")
	requireContains(t, out, "Updated 1 shows (1 disabled)")

	db, err := store.Open(env.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	show, err := db.GetShow(context.Background(), 101)
	if err != nil {
		t.Fatalf("load show: %v", err)
	}
	if show == nil || show.Enabled || show.Airing != store.AiringFinished {
		t.Fatalf("unexpected show after update: %+v", show)
	}
}
