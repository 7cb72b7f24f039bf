// Package zoom is a thin client for the parts of the Zoom REST API v2 that
// zoombulk needs: paged user listing and meeting creation.
//
// The client does not authenticate requests itself. Callers pass an
// *http.Client that already carries credentials, typically one built with
// oauth2.NewClient around the token manager's TokenSource:
//
//	httpClient := oauth2.NewClient(ctx, tokens.TokenSource(ctx))
//	client := zoom.NewClient(httpClient)
//
//	meeting, err := client.CreateMeeting(ctx, "me", zoom.Params{
//	    "topic":      "Weekly sync",
//	    "start_time": time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
//	    "timezone":   "Europe/Berlin",
//	})
//
// Rejected calls are returned as *APIError.
package zoom
