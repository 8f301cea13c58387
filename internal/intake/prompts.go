package intake

import "fmt"

// Replies carry Arabic first for the collectors, English below it for the
// back office reading exported chats.
const (
	promptDocument   = "من فضلك أرسل صورة واضحة لبطاقة الرقم القومي للناخب لبدء تسجيل جديد.\nPlease send a clear photo of the voter's ID card to start a new entry."
	promptFamilyName = "تم استلام البطاقة. ما هو اسم العائلة للناخب؟\nCard received. What is the voter's family name?"
	promptPhone      = "ما هو رقم هاتف الناخب؟ يجب أن يكون 11 رقمًا ويبدأ بـ 01.\nWhat is the voter's phone number? It must be 11 digits starting with 01."
	promptLocation   = "من فضلك شارك موقع الناخب من قائمة المرفقات (الموقع).\nPlease share the voter's location using the attachment menu (Location)."
	promptStance     = "ما هو موقف الناخب؟ أجب بواحدة من: مؤيد، معارض، محايد.\nWhat is the voter's stance? Reply with one of: supportive, opposed, neutral."

	replyFamilyNameEmpty = "اسم العائلة لا يمكن أن يكون فارغًا.\nThe family name cannot be empty.\n" + promptFamilyName
	replyCapabilityError = "عذرًا، تعذرت معالجة صورة البطاقة الآن. من فضلك أرسلها مرة أخرى.\nSorry, the card photo could not be processed right now. Please send it again."
	replyCommitError     = "عذرًا، تعذر حفظ السجل الآن. من فضلك أرسل الموقف مرة أخرى.\nSorry, the record could not be saved right now. Please send the stance again."
	replyStateError      = "عذرًا، حدث خطأ من جهتنا. حاول مرة أخرى بعد قليل.\nSorry, something went wrong on our side. Please try again in a moment."
	replyCancelled       = "تم إلغاء التسجيل.\nEntry cancelled.\n" + promptDocument
)

func promptFor(stage Stage) string {
	switch stage {
	case StageAwaitingFamilyName:
		return promptFamilyName
	case StageAwaitingPhone:
		return promptPhone
	case StageAwaitingLocation:
		return promptLocation
	case StageAwaitingStance:
		return promptStance
	}
	return promptDocument
}

func replyPhoneInvalid(reason string) string {
	return fmt.Sprintf("رقم الهاتف غير صحيح، من فضلك أرسله مرة أخرى.\nThat phone number is not valid: %s. Please send it again.", reason)
}

func replyCommitted(seq int, familyName string) string {
	return fmt.Sprintf("تم حفظ السجل رقم %d (%s). شكرًا! أرسل صورة البطاقة التالية لبدء تسجيل جديد.\nSaved record #%d (%s). Thank you! Send the next card photo to start a new entry.", seq, familyName, seq, familyName)
}
