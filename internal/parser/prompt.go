package parser

// systemInstruction primes the oracle for extraction rather than
// conversation.
const systemInstruction = "You are an expert bank statement parser. " +
	"Extract transaction data accurately and return only valid JSON. " +
	"Be thorough in finding all transactions regardless of format variations."

// buildPrompt embeds the extracted statement text verbatim in a fixed
// instruction prompt describing the required output shape and the
// normalization rules.
func buildPrompt(extractedText string) string {
	return "Parse this bank statement text and extract transaction data. " +
		"Return a JSON object with the following structure:\n\n" +
		"{\n" +
		"  \"accountInfo\": {\n" +
		"    \"accountName\": \"string (account holder name)\",\n" +
		"    \"accountNumber\": \"string (account number)\",\n" +
		"    \"statementPeriod\": \"string (statement period)\",\n" +
		"    \"openingBalance\": number,\n" +
		"    \"closingBalance\": number,\n" +
		"    \"totalIn\": number,\n" +
		"    \"totalOut\": number\n" +
		"  },\n" +
		"  \"transactions\": [\n" +
		"    {\n" +
		"      \"date\": \"string (normalize to DD MMM YYYY or DD/MM/YYYY format)\",\n" +
		"      \"description\": \"string (clean description)\",\n" +
		"      \"amount\": number (positive number),\n" +
		"      \"type\": \"debit\" | \"credit\"\n" +
		"    }\n" +
		"  ]\n" +
		"}\n\n" +
		"Bank Statement Text:\n" +
		extractedText + "\n\n" +
		"Important parsing rules:\n" +
		"1. Extract ALL transactions, even if format varies\n" +
		"2. Normalize dates to readable format\n" +
		"3. Clean up descriptions (remove extra spaces, codes)\n" +
		"4. Determine if transaction is debit (money out) or credit (money in)\n" +
		"5. Convert all amounts to positive numbers\n" +
		"6. If account info is unclear, use \"Unknown\" for missing fields\n" +
		"7. Look for patterns like: date, description, amount, balance\n" +
		"8. Common credit indicators: salary, deposit, transfer in, refund, interest\n" +
		"9. Common debit indicators: payment, withdrawal, fee, bill, purchase\n\n" +
		"Return ONLY the JSON object, no additional text or formatting."
}
