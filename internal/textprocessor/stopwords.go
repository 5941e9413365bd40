package textprocessor

func defaultStopWords() map[string]bool {
	words := []string{
		// Russian prepositions
		"в", "во", "на", "с", "со", "у", "от", "по", "для", "без", "при", "до",
		"к", "ко", "о", "об", "обо", "за", "из", "изо", "над", "под", "про",
		"через", "перед", "между", "около", "возле",

		// Russian conjunctions
		"и", "а", "но", "или", "да", "ни", "как", "что", "чтобы", "если", "когда",
		"хотя", "зато", "однако", "либо", "тоже", "также", "то", "потому", "поэтому",

		// Russian particles
		"же", "ли", "не", "бы", "вот", "лишь", "даже", "уже", "ведь", "только",

		// Russian interjections
		"ах", "ох", "ой", "эх", "ух", "увы", "ура", "эй", "ну",

		// English function words
		"a", "an", "the", "and", "or", "but", "if", "of", "at", "by", "for", "with",
		"to", "from", "in", "on", "as", "is", "are",
	}

	stopWords := make(map[string]bool, len(words))
	for _, word := range words {
		stopWords[word] = true
	}
	return stopWords
}
