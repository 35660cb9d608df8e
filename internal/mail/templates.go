package mail

import "fmt"

func verificationEmailHTML(displayName, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	<title>Verify your email</title>
</head>
<body style="margin: 0; padding: 0; font-family: Helvetica, Arial, sans-serif; background-color: #f7f9fc;">
	<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #ffffff; border-radius: 8px; margin-top: 40px;">
		<tr>
			<td style="padding: 30px 40px;">
				<h1 style="margin: 0 0 16px 0; font-size: 22px; color: #1a1a2e;">Welcome to SkillForge, %s!</h1>
				<p style="margin: 0 0 24px 0; font-size: 15px; color: #444;">
					Confirm your email address to activate your account and start
					browsing courses.
				</p>
				<p style="margin: 0 0 24px 0;">
					<a href="%s" style="background-color: #5271ff; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none; font-size: 15px;">Verify email</a>
				</p>
				<p style="margin: 0; font-size: 13px; color: #888;">
					If you did not create this account, you can ignore this email.
				</p>
			</td>
		</tr>
	</table>
</body>
</html>`, displayName, link)
}

func passwordResetEmailHTML(displayName, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	<title>Reset your password</title>
</head>
<body style="margin: 0; padding: 0; font-family: Helvetica, Arial, sans-serif; background-color: #f7f9fc;">
	<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #ffffff; border-radius: 8px; margin-top: 40px;">
		<tr>
			<td style="padding: 30px 40px;">
				<h1 style="margin: 0 0 16px 0; font-size: 22px; color: #1a1a2e;">Hi %s,</h1>
				<p style="margin: 0 0 24px 0; font-size: 15px; color: #444;">
					We received a request to reset your SkillForge password. The
					link below is valid for one hour.
				</p>
				<p style="margin: 0 0 24px 0;">
					<a href="%s" style="background-color: #5271ff; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none; font-size: 15px;">Reset password</a>
				</p>
				<p style="margin: 0; font-size: 13px; color: #888;">
					If you did not request a reset, no action is needed; your
					password is unchanged.
				</p>
			</td>
		</tr>
	</table>
</body>
</html>`, displayName, link)
}
