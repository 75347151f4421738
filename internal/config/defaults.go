package config

const (
	defaultDataDir            = "~/.local/share/airpost"
	defaultLogDir             = "~/.local/share/airpost/logs"
	defaultDays               = 7
	defaultPostDelayMinutes   = 30
	defaultEpisodeRetention   = 14
	defaultMinUpvotes         = 1
	defaultMinComments        = 0
	defaultEngagementLagHours = 24
	defaultMegathreadEpisodes = 12
	defaultRatelimit          = 60
	defaultAniListBaseURL     = "https://graphql.anilist.co"
	defaultRequestTimeout     = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Options: Options{
			Days:               defaultDays,
			PostDelayMinutes:   defaultPostDelayMinutes,
			EpisodeRetention:   defaultEpisodeRetention,
			MinUpvotes:         defaultMinUpvotes,
			MinComments:        defaultMinComments,
			EngagementLagHours: defaultEngagementLagHours,
			DisableInactive:    false,
			MegathreadEpisodes: defaultMegathreadEpisodes,
			Ratelimit:          defaultRatelimit,
			Submit:             true,
		},
		Discovery: Discovery{
			Enabled:        false,
			ShowTypes:      []string{"TV", "ONA"},
			Countries:      []string{"JP"},
			AllowNSFW:      false,
			DefaultEnabled: true,
		},
		AniList: AniList{
			BaseURL:        defaultAniListBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Lemmy: Lemmy{
			RequestTimeout: defaultRequestTimeout,
		},
		Post: Post{
			Title:            "{show_name} - Episode {episode} discussion",
			TitleWithEN:      "{show_name_en} - Episode {episode} discussion",
			MovieTitle:       "{show_name} - Movie discussion",
			MovieTitleWithEN: "{show_name_en} - Movie discussion",
			Body:             "Discussion thread for episode {episode} of {show_name}.\n\n{spoiler}\n\n{aliases}\n\n{discussions}",
			Formats: map[string]string{
				"spoiler":           "Reminder: please tag spoilers from source material.",
				"discussion":        "[Episode {episode}]({link})",
				"discussion_header": "Episode",
				"discussion_align":  ":-:",
				"discussion_none":   "No previous discussions.",
				"aliases":           "Also known as: {aliases}",
			},
		},
		Megathread: Megathread{
			Title:       "{show_name} - Discussion megathread",
			TitleWithEN: "{show_name_en} - Discussion megathread",
			Body:        "Rolling discussion thread for {show_name}.\n\n{discussions}",
			Comment:     "Episode {episode} discussion for {show_name}.",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
