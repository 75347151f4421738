package anilist

const mediaQuery = `
query ($id: Int) {
  Media (id: $id) {
    id
    idMal
    title {
      romaji
      english
    }
    format
    countryOfOrigin
    source
    synonyms
    isAdult
    status
    duration
  }
}
`

const pagedAiringQuery = `
query ($page: Int, $start: Int, $end: Int) {
  Page(page: $page, perPage: 25) {
    pageInfo {
      hasNextPage
    }
    airingSchedules(airingAt_greater: $start, airingAt_lesser: $end, sort: TIME) {
      airingAt
      episode
      media {
        id
        idMal
        title {
          romaji
          english
        }
        format
        countryOfOrigin
        source
        synonyms
        isAdult
        status
        duration
      }
    }
  }
}
`

const seasonQuery = `
query ($page: Int, $season: MediaSeason, $year: Int) {
  Page(page: $page, perPage: 25) {
    pageInfo {
      hasNextPage
    }
    media(season: $season, seasonYear: $year, type: ANIME, sort: POPULARITY_DESC) {
      id
      idMal
      title {
        romaji
        english
      }
      format
      countryOfOrigin
      source
      synonyms
      isAdult
      status
      duration
    }
  }
}
`
