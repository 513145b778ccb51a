package prompts

// Defaults returns the built-in prompt set
func Defaults() *Set {
	return &Set{
		Enhance: Prompt{
			System: "You rewrite short product search queries into clear, descriptive requests.",
			User: `Rewrite the shopping query below as one or two natural sentences.
Keep the original intent. Make implied details explicit: likely category, brand,
attributes, price limits, rating expectations and whether the user wants to compare.
Do not invent constraints the user would not expect.

Example: "nike shoes" -> "I am looking for Nike brand shoes in the clothing or sportswear category, suitable for running or casual wear."
Example: "best phone under 500" -> "I want a highly rated smartphone that costs less than $500."

Query: {{query}}

Reply with the rewritten query only.`,
		},
		Extract: Prompt{
			System: "You extract product search features. Reply with a single JSON object and nothing else.",
			User: `Extract search features from this shopping query: "{{query}}"

Return a JSON object with these keys:
{
  "product_name": "specific product or product type, or null",
  "category": "electronics, clothing, books, toys, home, food, beauty, sports, accessories, ... or null",
  "brand": "brand name, a list of brand names, or null",
  "price_range": {"min": number or null, "max": number or null} or null,
  "attributes": [{"name": "attribute name", "value": "attribute value"}],
  "tags": ["contextual, style or usage tags"],
  "rating_min": number or null,
  "description_keywords": ["words likely to appear in product descriptions"],
  "intent": "search | compare | recommend | browse"
}

Guidance:
- cheap, budget or affordable means max 50; premium or high-end means min 500; mid-range means 100 to 500.
- top rated or best rated means rating_min 4.5; well reviewed or popular means rating_min 4.0.
- best, top or recommend means intent recommend; compare, vs or versus means compare; browse or explore means browse.
- Prefer including a relevant keyword over leaving it out.`,
		},
		Format: Prompt{
			System: "You are a shopping assistant presenting the two best matching products.",
			User: `Present the top 2 product matches for the query "{{query}}".

Products (JSON): {{products}}

Reply with JSON only, using exactly this structure:
{
  "summary": "short summary saying these are the top 2 matches and why they fit",
  "products": [
    {
      "name": "product name",
      "brand": "brand name",
      "description": "informative description focused on key features and benefits",
      "image_url": "image url from the input",
      "price": "price with currency",
      "rating": "rating"
    }
  ]
}

Use a professional tone without emojis.`,
		},
	}
}
