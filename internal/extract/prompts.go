package extract

import (
	"fmt"
	"strings"
)

const parseHTMLInstructions = `
You are a web scraping assistant. Your task is to extract information
about new audiobook releases from the provided HTML content.

HTML content to parse:

` + "```html\n{html}\n```\n"

const shortDescriptionPrompt = `
Create a very short summary of at most a couple of concise sentences
summarizing the audiobook description. This description should be suitable for a
brief overview.

Description:
` + "```\n{description}\n```\n" + `
Only output the description without any preamble.
`

const embeddableDescriptionPrompt = `
You are a search optimization specialist. Your task is to rewrite the
provided audiobook description to improve its findability for
vector-based searches.

The rewritten text should contain keywords and phrases that a user
might use in a generic query for this type of content. The goal is to
optimize the description for generating effective embeddings.

Here is the original description:
` + "```\n{description}\n```\n" + `
Only output the embeddable description without any preamble.
`

func parsePrompt(htmlFragment string) string {
	return strings.ReplaceAll(parseHTMLInstructions, "{html}", htmlFragment)
}

func summaryPrompt(description string) string {
	return strings.ReplaceAll(shortDescriptionPrompt, "{description}", description)
}

func embeddablePrompt(description string) string {
	return strings.ReplaceAll(embeddableDescriptionPrompt, "{description}", description)
}

func listingSchema(baseURL string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"submissions": map[string]any{
				"type":        "array",
				"description": "A list of new audiobook submissions extracted from the source.",
				"items": map[string]any{
					"type":        "object",
					"description": "Represents a newly submitted audiobook entry found on the listing page.",
					"properties": map[string]any{
						"submission_date": map[string]any{
							"type":        "string",
							"description": "The date of submission, ideally in YYYY-MM-DD format.",
						},
						"url": map[string]any{
							"type": "string",
							"description": fmt.Sprintf(
								"The fully qualified URL to the audiobook's details page. Use %s as the domain.", baseURL),
						},
					},
					"required": []string{"submission_date", "url"},
				},
			},
		},
		"required": []string{"submissions"},
	}
}

func audiobookSchema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	strArray := func(desc string) map[string]any {
		return map[string]any{
			"type":        "array",
			"description": desc,
			"items":       map[string]any{"type": "string"},
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":      str("The full title of the audiobook."),
			"categories": strArray("A list of categories or genres associated with the audiobook. e.g., 'Fiction', 'Science Fiction'."),
			"language":   str("The language the audiobook is narrated in."),
			"keywords":   strArray("A list of keywords or tags related to the audiobook's content or themes."),
			"cover_url":  str("The direct, fully qualified URL to the audiobook's cover image."),
			"authors":    strArray("The names of the authors who wrote the book."),
			"read_by":    strArray("The names of the narrators or voice actors."),
			"format":     str("The audio file format, e.g., 'MP3', 'M4B'."),
			"bitrate":    str("The bitrate of the audio file, if available. e.g., '128kbps'."),
			"unabridged": map[string]any{
				"type":        "boolean",
				"description": "Set to true if the audiobook is an unabridged version.",
			},
			"description": str("The full HTML content of the audiobook's description section. Remove any other metadata that was already parsed as part by other fields from the description."),
			"file_size":   str("The total file size of the audiobook, if specified. e.g., '1.2 GB'."),
			"runtime":     str("The total runtime of the audiobook, preferably in HH:MM:SS format."),
			"is_part_of_series": map[string]any{
				"type":        "boolean",
				"description": "Set to true if the audiobook is part of a series.",
			},
			"series":        str("The title of the series the audiobook belongs to. Extract this even if it's part of the main title."),
			"series_volume": str("The volume or book number within the series. e.g., 'Book 1', 'Volume 3'."),
			"upload_date":   str("The date of the upload in the format YYYY-MM-DD. E.g. 2025-09-18."),
		},
		"required": []string{
			"title", "categories", "language", "keywords", "cover_url",
			"authors", "read_by", "format", "unabridged", "description",
		},
	}
}
